package runtime

import (
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/MentorCall/internal/domain/models"
)

type Phase string

const (
	PhaseWaitingForJoin    Phase = "waiting-for-join"
	PhaseJoinRequested     Phase = "join-requested"
	PhaseInCall            Phase = "in-call"
	PhaseEarlyEndRequested Phase = "early-end-requested"
	PhaseEnded             Phase = "ended"
)

// seat - состояние одного участника в комнате
type seat struct {
	Connected       bool
	EarlyEndPending bool
}

// SignalingSession - комната сессии в памяти. Хранится по значению, копия - это снимок.
type SignalingSession struct {
	SessionID      uuid.UUID
	Developer      models.ParticipantRef
	Student        models.ParticipantRef
	ScheduledStart time.Time
	Phase          Phase
	StudentName    string

	developer seat
	student   seat
}

func NewSignalingSession(session *models.Session, scheduledStart time.Time) SignalingSession {
	return SignalingSession{
		SessionID:      session.ID,
		Developer:      session.Developer(),
		Student:        session.Student(),
		ScheduledStart: scheduledStart,
		Phase:          PhaseWaitingForJoin,
	}
}

func (s *SignalingSession) seat(role models.Role) *seat {
	if role == models.RoleDeveloper {
		return &s.developer
	}

	return &s.student
}

// Participant возвращает роль пользователя в комнате
func (s *SignalingSession) Participant(userID uuid.UUID) (models.ParticipantRef, bool) {
	switch userID {
	case s.Developer.ID:
		return s.Developer, true
	case s.Student.ID:
		return s.Student, true
	default:
		return models.ParticipantRef{}, false
	}
}

func (s *SignalingSession) Counterpart(role models.Role) models.ParticipantRef {
	if role == models.RoleDeveloper {
		return s.Student
	}

	return s.Developer
}

func (s *SignalingSession) Connected(role models.Role) bool {
	return s.seat(role).Connected
}

func (s *SignalingSession) SetConnected(role models.Role, connected bool) {
	s.seat(role).Connected = connected
}

func (s *SignalingSession) EarlyEndPending(role models.Role) bool {
	return s.seat(role).EarlyEndPending
}

func (s *SignalingSession) SetEarlyEndPending(role models.Role, pending bool) {
	s.seat(role).EarlyEndPending = pending
}

// AnyEarlyEndPending - есть ли хоть один неотвеченный запрос на досрочное завершение
func (s *SignalingSession) AnyEarlyEndPending() bool {
	return s.developer.EarlyEndPending || s.student.EarlyEndPending
}

// InCall - звонок идет (в том числе с висящим запросом на завершение)
func (s *SignalingSession) InCall() bool {
	return s.Phase == PhaseInCall || s.Phase == PhaseEarlyEndRequested
}

func (s *SignalingSession) Empty() bool {
	return !s.developer.Connected && !s.student.Connected
}

// Leave отмечает выход участника. Звонок без второго участника возвращается в ожидание.
func (s *SignalingSession) Leave(role models.Role) {
	s.SetConnected(role, false)

	if s.Phase == PhaseEnded {
		return
	}

	s.developer.EarlyEndPending = false
	s.student.EarlyEndPending = false
	s.Phase = PhaseWaitingForJoin
}
