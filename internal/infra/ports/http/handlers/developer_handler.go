package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/qrave1/MentorCall/internal/domain/input"
	"github.com/qrave1/MentorCall/internal/infra/ports/http/dto"
	"github.com/qrave1/MentorCall/internal/usecase"
)

type DeveloperHandler struct {
	log *zap.Logger

	developerUsecase usecase.DeveloperUsecase
}

func NewDeveloperHandler(log *zap.Logger, developerUsecase usecase.DeveloperUsecase) *DeveloperHandler {
	return &DeveloperHandler{log: log, developerUsecase: developerUsecase}
}

func (h *DeveloperHandler) GetProfile(c echo.Context) error {
	developerID, ok := pathUUID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid developer id"})
	}

	profile, err := h.developerUsecase.GetProfile(c.Request().Context(), developerID)
	if err != nil {
		return respondError(c, h.log, "get developer profile failed", err)
	}

	return c.JSON(http.StatusOK, dto.NewProfileResponse(profile))
}

func (h *DeveloperHandler) UpdateMyProfile(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	var req dto.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	profile, err := h.developerUsecase.UpdateProfile(c.Request().Context(), &input.UpdateDeveloperProfileInput{
		UserID:       userID,
		WorkingHours: req.WorkingHours,
		HourlyRate:   req.HourlyRate,
	})
	if err != nil {
		return respondError(c, h.log, "update developer profile failed", err)
	}

	return c.JSON(http.StatusOK, dto.NewProfileResponse(profile))
}
