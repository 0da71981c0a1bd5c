package models

import (
	"time"

	"github.com/google/uuid"
)

type WorkingHours struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type DeveloperProfile struct {
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	WorkingFrom *string   `json:"-" db:"working_from"`
	WorkingTo   *string   `json:"-" db:"working_to"`
	HourlyRate  float64   `json:"hourly_rate" db:"hourly_rate"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// WorkingHours возвращает nil, если разработчик еще не задал часы работы
func (p *DeveloperProfile) WorkingHours() *WorkingHours {
	if p.WorkingFrom == nil || p.WorkingTo == nil {
		return nil
	}

	return &WorkingHours{From: *p.WorkingFrom, To: *p.WorkingTo}
}

func (p *DeveloperProfile) SetWorkingHours(wh WorkingHours) {
	p.WorkingFrom = &wh.From
	p.WorkingTo = &wh.To
}
