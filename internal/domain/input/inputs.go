package input

import (
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/MentorCall/internal/domain/models"
)

type RegisterUserInput struct {
	Username    string
	Password    string
	DisplayName string
	Role        models.Role
}

type CreateSessionInput struct {
	StudentID   uuid.UUID
	DeveloperID uuid.UUID
	Title       string
	Description string
	Hours       int
	StartTime   string
	Date        time.Time
	Amount      float64
}

type UpdateDeveloperProfileInput struct {
	UserID       uuid.UUID
	WorkingHours models.WorkingHours
	HourlyRate   float64
}
