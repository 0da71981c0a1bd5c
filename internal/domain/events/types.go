package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message - общее событие
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Типы событий сигналинга
const (
	TypeJoinSessionRoom  = "join-session-room"
	TypeRoomJoined       = "room-joined"
	TypePeerJoined       = "peer-joined"
	TypePeerLeft         = "peer-left"
	TypeAskToJoin        = "ask-to-join"
	TypeJoinRequest      = "join-request"
	TypeAcceptJoin       = "accept-join"
	TypeJoinAccepted     = "join-accepted"
	TypeSignal           = "signal"
	TypeCodeChange       = "code-change"
	TypeEditorToggle     = "editor-toggle"
	TypeEarlyEndRequest  = "early-end-request"
	TypeAcceptEarlyEnd   = "accept-early-end"
	TypeRejectEarlyEnd   = "reject-early-end"
	TypeEarlyEndAccepted = "early-end-accepted"
	TypeEarlyEndRejected = "early-end-rejected"
	TypeSessionEnded     = "session-ended"
	TypeSessionCompleted = "session-completed"
	TypeSendMessage      = "send-message"
	TypeReceiveMessage   = "receive-message"
	TypePing             = "ping"
	TypePong             = "pong"
	TypeError            = "error"
)

// Opaque - данные согласования соединения. Сервер их не разбирает, а пересылает как есть.
type Opaque []byte

func (o Opaque) MarshalJSON() ([]byte, error) {
	if len(o) == 0 {
		return []byte("null"), nil
	}

	return o, nil
}

func (o *Opaque) UnmarshalJSON(data []byte) error {
	if o == nil {
		return fmt.Errorf("events.Opaque: UnmarshalJSON on nil pointer")
	}

	*o = append((*o)[0:0], data...)

	return nil
}

// SessionEvent - событие, в котором нужен только id сессии
type SessionEvent struct {
	SessionID string `json:"sessionId"`
}

// JoinSessionRoomEvent - вход участника в комнату сессии
type JoinSessionRoomEvent struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId,omitempty"`
	Role      string `json:"role,omitempty"`
}

// RoomJoinedEvent - подтверждение входа с текущей фазой комнаты
type RoomJoinedEvent struct {
	SessionID     string `json:"sessionId"`
	Role          string `json:"role"`
	Phase         string `json:"phase"`
	PeerConnected bool   `json:"peerConnected"`
	StartsAt      string `json:"startsAt"`
}

// PeerEvent - второй участник вошел или вышел
type PeerEvent struct {
	SessionID string `json:"sessionId"`
	Role      string `json:"role"`
}

type AskToJoinEvent struct {
	SessionID   string `json:"sessionId"`
	StudentName string `json:"studentName"`
}

type JoinRequestEvent struct {
	SessionID   string `json:"sessionId"`
	StudentName string `json:"studentName"`
}

type SignalEvent struct {
	SessionID string `json:"sessionId"`
	Data      Opaque `json:"data"`
}

type CodeChangeEvent struct {
	SessionID string `json:"sessionId"`
	Code      string `json:"code"`
	Language  string `json:"language"`
}

type EditorToggleEvent struct {
	SessionID string `json:"sessionId"`
	Show      bool   `json:"show"`
}

type EarlyEndRequestEvent struct {
	SessionID string `json:"sessionId"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
}

type SessionCompletedEvent struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
}

type SendMessageEvent struct {
	ToUserID string `json:"toUserId"`
	Message  string `json:"message"`
}

type ReceiveMessageEvent struct {
	ID         string    `json:"id"`
	FromUserID string    `json:"fromUserId"`
	ToUserID   string    `json:"toUserId"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	RoomID     string    `json:"roomId"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

// New собирает сообщение с данными payload
func New(eventType string, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: eventType}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	return Message{Type: eventType, Data: data}, nil
}

// Error - событие ошибки для отправителя
func Error(message string) Message {
	msg, _ := New(TypeError, ErrorEvent{Message: message})
	return msg
}
