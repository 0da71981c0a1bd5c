package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/qrave1/MentorCall/internal/domain/input"
	"github.com/qrave1/MentorCall/internal/domain/models"
	"github.com/qrave1/MentorCall/internal/infra/appctx"
	"github.com/qrave1/MentorCall/internal/infra/ports/http/dto"
	"github.com/qrave1/MentorCall/internal/usecase"
)

type SessionHandler struct {
	log *zap.Logger

	sessionUsecase usecase.SessionUsecase
}

func NewSessionHandler(log *zap.Logger, sessionUsecase usecase.SessionUsecase) *SessionHandler {
	return &SessionHandler{log: log, sessionUsecase: sessionUsecase}
}

func (h *SessionHandler) AvailableSlots(c echo.Context) error {
	developerID, err := uuid.Parse(c.QueryParam("developerId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid developerId"})
	}

	date, err := time.Parse(models.DateLayout, c.QueryParam("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
	}

	hours := 1
	if raw := c.QueryParam("hours"); raw != "" {
		hours, err = strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid hours"})
		}
	}

	slots, err := h.sessionUsecase.AvailableSlots(c.Request().Context(), developerID, date, hours)
	if err != nil {
		return respondError(c, h.log, "available slots failed", err)
	}

	return c.JSON(http.StatusOK, slots)
}

func (h *SessionHandler) Create(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	if role, _ := appctx.Role(c.Request().Context()); role != models.RoleStudent {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "only students book sessions"})
	}

	var req dto.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	developerID, err := uuid.Parse(req.DeveloperID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid developerId"})
	}

	date, err := time.Parse(models.DateLayout, req.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
	}

	created, err := h.sessionUsecase.CreateSession(c.Request().Context(), &input.CreateSessionInput{
		StudentID:   userID,
		DeveloperID: developerID,
		Title:       req.Title,
		Description: req.Description,
		Hours:       req.Hours,
		StartTime:   req.StartTime,
		Date:        date,
		Amount:      req.Amount,
	})
	if err != nil {
		return respondError(c, h.log, "create session failed", err)
	}

	return c.JSON(http.StatusCreated, created)
}

func (h *SessionHandler) ConfirmPayment(c echo.Context) error {
	return h.transition(c, "confirm payment failed", h.sessionUsecase.ConfirmPayment)
}

func (h *SessionHandler) Complete(c echo.Context) error {
	return h.transition(c, "complete session failed", h.sessionUsecase.Complete)
}

func (h *SessionHandler) Cancel(c echo.Context) error {
	return h.transition(c, "cancel session failed", h.sessionUsecase.Cancel)
}

func (h *SessionHandler) SaveRecording(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	sessionID, err := uuid.Parse(c.FormValue("sessionId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid sessionId"})
	}

	header, err := c.FormFile("recording")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "recording file is required"})
	}

	file, err := header.Open()
	if err != nil {
		return respondError(c, h.log, "open uploaded recording", err)
	}
	defer file.Close()

	session, err := h.sessionUsecase.SaveRecording(c.Request().Context(), userID, sessionID, header.Filename, file)
	if err != nil {
		return respondError(c, h.log, "save recording failed", err)
	}

	return c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) List(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	sessions, err := h.sessionUsecase.ListSessions(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, h.log, "list sessions failed", err)
	}

	if sessions == nil {
		sessions = []*models.Session{}
	}

	return c.JSON(http.StatusOK, dto.ListSessionsResponse{Sessions: sessions})
}

func (h *SessionHandler) Get(c echo.Context) error {
	return h.transition(c, "get session failed", h.sessionUsecase.GetSession)
}

// transition - общий путь для операций вида (пользователь, :id) -> сессия
func (h *SessionHandler) transition(
	c echo.Context,
	msg string,
	op func(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error),
) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid session id"})
	}

	session, err := op(c.Request().Context(), userID, sessionID)
	if err != nil {
		return respondError(c, h.log, msg, err)
	}

	return c.JSON(http.StatusOK, session)
}
