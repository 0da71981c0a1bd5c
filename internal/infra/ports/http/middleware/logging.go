package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger пишет access log, уровень зависит от статуса ответа
func ZapLogger(log *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(
		middleware.RequestLoggerConfig{
			LogStatus:  true,
			LogURI:     true,
			LogMethod:  true,
			LogError:   true,
			LogLatency: true,

			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				level := zapcore.InfoLevel
				if v.Error != nil || v.Status >= http.StatusInternalServerError {
					level = zapcore.ErrorLevel
				} else if v.Status >= http.StatusBadRequest {
					level = zapcore.WarnLevel
				}

				fields := []zap.Field{
					zap.Int("status", v.Status),
					zap.String("uri", v.URI),
					zap.String("method", v.Method),
					zap.Duration("latency", v.Latency),
				}
				if v.Error != nil {
					fields = append(fields, zap.Error(v.Error))
				}

				log.Log(level, "HTTP request", fields...)

				return nil
			},
		},
	)
}
