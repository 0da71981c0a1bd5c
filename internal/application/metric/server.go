package metric

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck проверяет зависимость сервиса (например, пинг БД)
type HealthCheck func(ctx context.Context) error

// NewServer создает сервер метрик с /metrics и /health
func NewServer(checks ...HealthCheck) *echo.Echo {
	e := echo.New()

	e.HideBanner = true
	e.HidePort = true

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/health", func(c echo.Context) error {
		for _, check := range checks {
			if err := check(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			}
		}

		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return e
}
