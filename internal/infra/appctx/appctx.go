package appctx

import (
	"context"

	"github.com/google/uuid"

	"github.com/qrave1/MentorCall/internal/domain/models"
)

type ctxKey string

const (
	userIDKey ctxKey = "userID"
	roleKey   ctxKey = "role"
)

// WithUserID добавляет userID в контекст
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID извлекает userID из контекста
func UserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// WithRole добавляет роль из токена в контекст
func WithRole(ctx context.Context, role models.Role) context.Context {
	return context.WithValue(ctx, roleKey, role)
}

func Role(ctx context.Context) (models.Role, bool) {
	role, ok := ctx.Value(roleKey).(models.Role)
	return role, ok
}
