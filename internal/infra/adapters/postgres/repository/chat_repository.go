package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/qrave1/MentorCall/internal/domain/models"
)

type ChatRepository interface {
	Create(ctx context.Context, msg *models.ChatMessage) error
	// ListByRoom возвращает последние limit сообщений комнаты в хронологическом порядке
	ListByRoom(ctx context.Context, roomID string, limit int) ([]*models.ChatMessage, error)
}

type chatRepo struct {
	db *sqlx.DB
}

func NewChatRepo(db *sqlx.DB) ChatRepository {
	return &chatRepo{db: db}
}

func (r *chatRepo) Create(ctx context.Context, msg *models.ChatMessage) error {
	_, err := r.db.NamedExecContext(
		ctx,
		`INSERT INTO chat_messages (id, from_user_id, to_user_id, message, room_id, created_at)
		VALUES (:id, :from_user_id, :to_user_id, :message, :room_id, :created_at)`,
		msg,
	)

	return wrapErr("create chat message", err)
}

func (r *chatRepo) ListByRoom(ctx context.Context, roomID string, limit int) ([]*models.ChatMessage, error) {
	var messages []*models.ChatMessage

	query := `
		SELECT id, from_user_id, to_user_id, message, room_id, created_at
		FROM (
			SELECT * FROM chat_messages WHERE room_id = $1 ORDER BY created_at DESC LIMIT $2
		) last
		ORDER BY created_at ASC
	`

	if err := r.db.SelectContext(ctx, &messages, query, roomID, limit); err != nil {
		return nil, wrapErr("list chat messages", err)
	}

	return messages, nil
}
