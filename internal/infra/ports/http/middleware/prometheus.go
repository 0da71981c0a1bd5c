package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/MentorCall/internal/application/metric"
)

// PrometheusMiddleware собирает метрики HTTP запросов
func PrometheusMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if status == 0 {
				status = http.StatusOK
			}

			if err != nil && status < http.StatusBadRequest {
				status = http.StatusInternalServerError
			}

			// c.Path() - шаблон маршрута, а не реальный URI
			metric.RecordHTTPMetrics(c.Request().Method, c.Path(), status, time.Since(start))

			return err
		}
	}
}
