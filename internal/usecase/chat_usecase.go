package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qrave1/MentorCall/internal/application/constant"
	"github.com/qrave1/MentorCall/internal/domain/apperr"
	"github.com/qrave1/MentorCall/internal/domain/events"
	"github.com/qrave1/MentorCall/internal/domain/models"
	"github.com/qrave1/MentorCall/internal/infra/adapters/memory"
	"github.com/qrave1/MentorCall/internal/infra/adapters/postgres/repository"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type ChatUsecase interface {
	// Send сохраняет сообщение и доставляет его обоим собеседникам
	Send(ctx context.Context, from, to uuid.UUID, text string) (*models.ChatMessage, error)
	History(ctx context.Context, userID, otherID uuid.UUID, limit int) ([]*models.ChatMessage, error)
}

type chatUsecase struct {
	log *zap.Logger

	chatRepo repository.ChatRepository
	userRepo repository.UserRepository
	wsRepo   memory.WebsocketConnectionRepository
}

func NewChatUsecase(
	log *zap.Logger,
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	wsRepo memory.WebsocketConnectionRepository,
) ChatUsecase {
	return &chatUsecase{log: log, chatRepo: chatRepo, userRepo: userRepo, wsRepo: wsRepo}
}

func (uc *chatUsecase) Send(ctx context.Context, from, to uuid.UUID, text string) (*models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty message: %w", apperr.ErrInvalidInput)
	}

	if from == to {
		return nil, fmt.Errorf("message to self: %w", apperr.ErrInvalidInput)
	}

	if _, err := uc.userRepo.GetUserByID(ctx, to); err != nil {
		return nil, fmt.Errorf("get recipient: %w", err)
	}

	msg := models.NewChatMessage(from, to, text)

	if err := uc.chatRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("save chat message: %w", err)
	}

	event, err := events.New(events.TypeReceiveMessage, events.ReceiveMessageEvent{
		ID:         msg.ID.String(),
		FromUserID: msg.FromUserID.String(),
		ToUserID:   msg.ToUserID.String(),
		Message:    msg.Message,
		Timestamp:  msg.Timestamp,
		RoomID:     msg.RoomID,
	})
	if err != nil {
		return nil, err
	}

	// Получатель офлайн - сообщение прочитает из истории
	if !uc.wsRepo.Write(to, event) {
		uc.log.Debug("chat recipient offline", zap.Stringer(constant.UserID, to))
	}
	uc.wsRepo.Write(from, event)

	return msg, nil
}

func (uc *chatUsecase) History(ctx context.Context, userID, otherID uuid.UUID, limit int) ([]*models.ChatMessage, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	limit = min(limit, maxHistoryLimit)

	messages, err := uc.chatRepo.ListByRoom(ctx, models.ChatRoomID(userID, otherID), limit)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}

	return messages, nil
}
