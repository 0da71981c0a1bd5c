package models

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	ID         uuid.UUID `json:"id" db:"id"`
	FromUserID uuid.UUID `json:"from_user_id" db:"from_user_id"`
	ToUserID   uuid.UUID `json:"to_user_id" db:"to_user_id"`
	Message    string    `json:"message" db:"message"`
	Timestamp  time.Time `json:"timestamp" db:"created_at"`
	RoomID     string    `json:"room_id" db:"room_id"`
}

func NewChatMessage(from, to uuid.UUID, text string) *ChatMessage {
	return &ChatMessage{
		ID:         uuid.New(),
		FromUserID: from,
		ToUserID:   to,
		Message:    text,
		Timestamp:  time.Now(),
		RoomID:     ChatRoomID(from, to),
	}
}

// ChatRoomID не зависит от порядка собеседников
func ChatRoomID(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	slices.Sort(ids)

	return strings.Join(ids, "_")
}
