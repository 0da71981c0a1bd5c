package appctx

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/qrave1/MentorCall/internal/domain/models"
)

// Claims - payload JWT: subject = id пользователя
type Claims struct {
	jwt.RegisteredClaims
	Role models.Role `json:"role"`
}
