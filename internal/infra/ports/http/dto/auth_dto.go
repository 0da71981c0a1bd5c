package dto

import (
	"github.com/google/uuid"

	"github.com/qrave1/MentorCall/internal/domain/models"
)

type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse - токен дублируется в теле для клиентов без cookie
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type GetMeResponse struct {
	ID          uuid.UUID   `json:"id"`
	Username    string      `json:"username"`
	DisplayName string      `json:"display_name"`
	Role        models.Role `json:"role"`
}
