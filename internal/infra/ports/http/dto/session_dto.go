package dto

import "github.com/qrave1/MentorCall/internal/domain/models"

type CreateSessionRequest struct {
	DeveloperID string  `json:"developerId"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Hours       int     `json:"hours"`
	StartTime   string  `json:"startTime"`
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
}

type ListSessionsResponse struct {
	Sessions []*models.Session `json:"sessions"`
}
