package server

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/qrave1/MentorCall/internal/application/config"
	"github.com/qrave1/MentorCall/internal/infra/ports/http/handlers"
	"github.com/qrave1/MentorCall/internal/infra/ports/http/middleware"
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	Session   *handlers.SessionHandler
	Developer *handlers.DeveloperHandler
	Chat      *handlers.ChatHandler
	Ice       *handlers.IceHandler
	WS        *handlers.WebSocketHandler
}

func New(cfg *config.Config, log *zap.Logger, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.ZapLogger(log))
	e.Use(middleware.PrometheusMiddleware())

	api := e.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", h.Auth.Register)
			authGroup.POST("/login", h.Auth.Login)
		}

		v1 := api.Group("/v1")
		v1.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
		{
			v1.GET("/me", h.Auth.GetMe)
			v1.GET("/users/online", h.Auth.GetOnlineUsers)

			v1.GET("/ice", h.Ice.IceServers)

			v1.GET("/ws", h.WS.Handle)

			sessions := v1.Group("/sessions")
			{
				sessions.GET("", h.Session.List)
				sessions.GET("/available-slots", h.Session.AvailableSlots)
				sessions.POST("/create", h.Session.Create)
				sessions.POST("/save-recording", h.Session.SaveRecording)
				sessions.GET("/:id", h.Session.Get)
				sessions.PUT("/:id/confirm-payment", h.Session.ConfirmPayment)
				sessions.PUT("/:id/complete", h.Session.Complete)
				sessions.PUT("/:id/cancel", h.Session.Cancel)
			}

			v1.GET("/developers/:id/profile", h.Developer.GetProfile)
			v1.PUT("/developers/me/profile", h.Developer.UpdateMyProfile)

			v1.GET("/chat/:userId/messages", h.Chat.History)
		}
	}

	return e
}
