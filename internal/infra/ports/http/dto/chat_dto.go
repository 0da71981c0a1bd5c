package dto

import "github.com/qrave1/MentorCall/internal/domain/models"

type ChatHistoryResponse struct {
	Messages []*models.ChatMessage `json:"messages"`
}
