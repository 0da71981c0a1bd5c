package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleStudent      Role = "student"
	RoleDeveloper    Role = "developer"
	RoleOrganization Role = "organization"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleDeveloper, RoleOrganization:
		return true
	default:
		return false
	}
}

type User struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Username    string    `json:"username" db:"username"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Password    string    `json:"-" db:"password"`
	Role        Role      `json:"role" db:"role"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

func NewUser(username, displayName string, role Role) *User {
	if displayName == "" {
		displayName = username
	}

	return &User{
		ID:          uuid.New(),
		Username:    username,
		DisplayName: displayName,
		Role:        role,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

// ParticipantRef - ссылка на участника с тегом роли.
// Через нее же выражаются полиморфные владельцы (разработчик или организация).
type ParticipantRef struct {
	Role Role      `json:"role"`
	ID   uuid.UUID `json:"id"`
}

func DeveloperRef(id uuid.UUID) ParticipantRef {
	return ParticipantRef{Role: RoleDeveloper, ID: id}
}

func StudentRef(id uuid.UUID) ParticipantRef {
	return ParticipantRef{Role: RoleStudent, ID: id}
}

func OrganizationRef(id uuid.UUID) ParticipantRef {
	return ParticipantRef{Role: RoleOrganization, ID: id}
}

func (p ParticipantRef) IsZero() bool {
	return p.ID == uuid.Nil
}

func (p ParticipantRef) String() string {
	return string(p.Role) + ":" + p.ID.String()
}
