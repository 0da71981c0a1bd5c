package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/qrave1/MentorCall/internal/application/config"
	"github.com/qrave1/MentorCall/internal/application/constant"
	"github.com/qrave1/MentorCall/internal/domain/input"
	"github.com/qrave1/MentorCall/internal/domain/models"
	"github.com/qrave1/MentorCall/internal/infra/ports/http/dto"
	"github.com/qrave1/MentorCall/internal/usecase"
)

const tokenCookieTTL = 72 * time.Hour

type AuthHandler struct {
	cfg *config.Config
	log *zap.Logger

	userUsecase usecase.UserUsecase
}

func NewAuthHandler(cfg *config.Config, log *zap.Logger, userUsecase usecase.UserUsecase) *AuthHandler {
	return &AuthHandler{
		cfg:         cfg,
		log:         log,
		userUsecase: userUsecase,
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	user, err := h.userUsecase.CreateUser(c.Request().Context(), &input.RegisterUserInput{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        models.Role(req.Role),
	})
	if err != nil {
		return respondError(c, h.log, "create user failed", err)
	}

	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	user, err := h.userUsecase.ValidateCredentials(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		h.log.Warn("validate credentials failed", zap.String(constant.UserName, req.Username), zap.Error(err))
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	}

	token, err := h.userUsecase.GenerateJWT(user)
	if err != nil {
		h.log.Error("generate JWT failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not create token"})
	}

	cookie := &http.Cookie{
		Name:     "jwt",
		Value:    token,
		Expires:  time.Now().Add(tokenCookieTTL),
		Path:     "/",
		Secure:   !h.cfg.Debug,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if !h.cfg.Debug {
		cookie.SameSite = http.SameSiteNoneMode
	}

	c.SetCookie(cookie)

	return c.JSON(http.StatusOK, dto.LoginResponse{Token: token, User: user})
}

func (h *AuthHandler) GetMe(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	user, err := h.userUsecase.GetUserByID(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "user not found"})
	}

	return c.JSON(http.StatusOK, dto.GetMeResponse{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        user.Role,
	})
}

func (h *AuthHandler) GetOnlineUsers(c echo.Context) error {
	onlineUsers, err := h.userUsecase.GetOnlineUsers(c.Request().Context())
	if err != nil {
		h.log.Error("get online users failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not get online users"})
	}

	return c.JSON(http.StatusOK, onlineUsers)
}
