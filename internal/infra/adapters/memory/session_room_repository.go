package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/qrave1/MentorCall/internal/application/metric"
	"github.com/qrave1/MentorCall/internal/domain/models"
	"github.com/qrave1/MentorCall/internal/domain/runtime"
)

var ErrRoomNotFound = errors.New("session room not found")

// SessionRoomRepository - реестр комнат сессий процесса.
// Все переходы фаз идут через Update под одним мьютексом, поэтому события одной
// сессии обрабатываются строго по очереди.
type SessionRoomRepository interface {
	// Register создает комнату при первом входе и отмечает участника подключенным
	Register(ctx context.Context, room runtime.SignalingSession, participant models.ParticipantRef) runtime.SignalingSession

	// Lookup возвращает снимок комнаты
	Lookup(ctx context.Context, sessionID uuid.UUID) (runtime.SignalingSession, bool)

	// Unregister отмечает выход участника, пустая комната удаляется.
	// Второе значение - была ли комната удалена.
	Unregister(ctx context.Context, sessionID uuid.UUID, participant models.ParticipantRef) (runtime.SignalingSession, bool, error)

	// Update применяет fn к комнате атомарно. Комната в фазе Ended удаляется сразу же.
	Update(ctx context.Context, sessionID uuid.UUID, fn func(room *runtime.SignalingSession) error) (runtime.SignalingSession, error)

	// RoomsOf - комнаты, в которых пользователь сейчас подключен
	RoomsOf(ctx context.Context, userID uuid.UUID) []uuid.UUID

	Count() int
}

type sessionRoomRepository struct {
	rooms map[uuid.UUID]*runtime.SignalingSession
	mu    sync.Mutex
}

func NewSessionRoomRepository() SessionRoomRepository {
	return &sessionRoomRepository{
		rooms: make(map[uuid.UUID]*runtime.SignalingSession),
	}
}

func (r *sessionRoomRepository) Register(
	ctx context.Context,
	room runtime.SignalingSession,
	participant models.ParticipantRef,
) runtime.SignalingSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.rooms[room.SessionID]
	if !ok {
		existing = &room
		r.rooms[room.SessionID] = existing
		metric.SetSignalingRoomsActive(len(r.rooms))
	}

	existing.SetConnected(participant.Role, true)

	return *existing
}

func (r *sessionRoomRepository) Lookup(ctx context.Context, sessionID uuid.UUID) (runtime.SignalingSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[sessionID]
	if !ok {
		return runtime.SignalingSession{}, false
	}

	return *room, true
}

func (r *sessionRoomRepository) Unregister(
	ctx context.Context,
	sessionID uuid.UUID,
	participant models.ParticipantRef,
) (runtime.SignalingSession, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[sessionID]
	if !ok {
		return runtime.SignalingSession{}, false, ErrRoomNotFound
	}

	room.Leave(participant.Role)

	if room.Empty() {
		r.delete(sessionID)
		return *room, true, nil
	}

	return *room, false, nil
}

func (r *sessionRoomRepository) Update(
	ctx context.Context,
	sessionID uuid.UUID,
	fn func(room *runtime.SignalingSession) error,
) (runtime.SignalingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[sessionID]
	if !ok {
		return runtime.SignalingSession{}, ErrRoomNotFound
	}

	// fn работает с копией, при ошибке комната не меняется
	next := *room
	if err := fn(&next); err != nil {
		return *room, err
	}

	*room = next

	if room.Phase == runtime.PhaseEnded {
		r.delete(sessionID)
	}

	return next, nil
}

func (r *sessionRoomRepository) RoomsOf(ctx context.Context, userID uuid.UUID) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []uuid.UUID

	for id, room := range r.rooms {
		ref, ok := room.Participant(userID)
		if ok && room.Connected(ref.Role) {
			ids = append(ids, id)
		}
	}

	return ids
}

func (r *sessionRoomRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.rooms)
}

func (r *sessionRoomRepository) delete(sessionID uuid.UUID) {
	delete(r.rooms, sessionID)
	metric.SetSignalingRoomsActive(len(r.rooms))
}
