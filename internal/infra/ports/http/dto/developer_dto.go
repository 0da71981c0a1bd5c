package dto

import "github.com/qrave1/MentorCall/internal/domain/models"

type UpdateProfileRequest struct {
	WorkingHours models.WorkingHours `json:"workingHours"`
	HourlyRate   float64             `json:"hourlyRate"`
}

type ProfileResponse struct {
	UserID       string               `json:"userId"`
	WorkingHours *models.WorkingHours `json:"workingHours"`
	HourlyRate   float64              `json:"hourlyRate"`
}

func NewProfileResponse(p *models.DeveloperProfile) ProfileResponse {
	return ProfileResponse{
		UserID:       p.UserID.String(),
		WorkingHours: p.WorkingHours(),
		HourlyRate:   p.HourlyRate,
	}
}
