package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/qrave1/MentorCall/internal/domain/models"
	"github.com/qrave1/MentorCall/internal/infra/ports/http/dto"
	"github.com/qrave1/MentorCall/internal/usecase"
)

type ChatHandler struct {
	log *zap.Logger

	chatUsecase usecase.ChatUsecase
}

func NewChatHandler(log *zap.Logger, chatUsecase usecase.ChatUsecase) *ChatHandler {
	return &ChatHandler{log: log, chatUsecase: chatUsecase}
}

func (h *ChatHandler) History(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	otherID, ok := pathUUID(c, "userId")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid user id"})
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = n
	}

	messages, err := h.chatUsecase.History(c.Request().Context(), userID, otherID, limit)
	if err != nil {
		return respondError(c, h.log, "chat history failed", err)
	}

	if messages == nil {
		messages = []*models.ChatMessage{}
	}

	return c.JSON(http.StatusOK, dto.ChatHistoryResponse{Messages: messages})
}
