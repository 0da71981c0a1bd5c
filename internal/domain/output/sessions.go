package output

import "github.com/qrave1/MentorCall/internal/domain/models"

// AvailableSlots - ответ на запрос свободного времени разработчика
type AvailableSlots struct {
	WorkingHours   *models.WorkingHours `json:"workingHours"`
	AvailableSlots []string             `json:"availableSlots"`
	HourlyRate     float64              `json:"hourlyRate"`
}

type CreatedSession struct {
	Session      *models.Session `json:"session"`
	ClientSecret string          `json:"clientSecret"`
}
