package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusConfirmed SessionStatus = "confirmed"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// DateLayout - формат даты сессии в API и БД
const DateLayout = "2006-01-02"

type Session struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	DeveloperID     uuid.UUID     `json:"developer_id" db:"developer_id"`
	StudentID       uuid.UUID     `json:"student_id" db:"student_id"`
	Title           string        `json:"title" db:"title"`
	Description     string        `json:"description" db:"description"`
	Hours           int           `json:"hours" db:"hours"`
	Date            time.Time     `json:"date" db:"date"`
	StartTime       string        `json:"start_time" db:"start_time"`
	EndTime         string        `json:"end_time" db:"end_time"`
	Amount          float64       `json:"amount" db:"amount"`
	Status          SessionStatus `json:"status" db:"status"`
	PaymentIntentID *string       `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	RecordingPath   *string       `json:"recording_path,omitempty" db:"recording_path"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// BookedSession - занятый интервал разработчика
type BookedSession struct {
	StartTime string `db:"start_time"`
	EndTime   string `db:"end_time"`
}

// BlocksAvailability - только pending и confirmed занимают время разработчика
func (s SessionStatus) BlocksAvailability() bool {
	return s == SessionStatusPending || s == SessionStatusConfirmed
}

func (s *Session) Developer() ParticipantRef {
	return DeveloperRef(s.DeveloperID)
}

func (s *Session) Student() ParticipantRef {
	return StudentRef(s.StudentID)
}

// Participant определяет роль пользователя в сессии по записи, а не по словам клиента
func (s *Session) Participant(userID uuid.UUID) (ParticipantRef, bool) {
	switch userID {
	case s.DeveloperID:
		return s.Developer(), true
	case s.StudentID:
		return s.Student(), true
	default:
		return ParticipantRef{}, false
	}
}

// Counterpart возвращает второго участника сессии
func (s *Session) Counterpart(role Role) ParticipantRef {
	if role == RoleDeveloper {
		return s.Student()
	}

	return s.Developer()
}

// ScheduledStart - момент начала сессии в часовом поясе loc
func (s *Session) ScheduledStart(loc *time.Location) (time.Time, error) {
	hour, minute, err := ParseClock(s.StartTime)
	if err != nil {
		return time.Time{}, err
	}

	y, m, d := s.Date.Date()

	return time.Date(y, m, d, hour, minute, 0, 0, loc), nil
}

// ParseClock разбирает время вида "HH:MM"
func ParseClock(value string) (int, int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed time %q", value)
	}

	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("malformed hour in %q", value)
	}

	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("malformed minute in %q", value)
	}

	return hour, minute, nil
}

// FormatClock форматирует час в "HH:00"
func FormatClock(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}
