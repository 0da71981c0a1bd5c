package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/MentorCall/internal/domain/models"
	"github.com/qrave1/MentorCall/internal/domain/runtime"
)

func newRoom() (runtime.SignalingSession, *models.Session) {
	session := &models.Session{ID: uuid.New(), DeveloperID: uuid.New(), StudentID: uuid.New()}
	return runtime.NewSignalingSession(session, time.Now()), session
}

func TestSessionRoomRegisterAndUnregister(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRoomRepository()
	room, session := newRoom()

	snap := repo.Register(ctx, room, session.Developer())
	assert.True(t, snap.Connected(models.RoleDeveloper))
	assert.False(t, snap.Connected(models.RoleStudent))
	assert.Equal(t, runtime.PhaseWaitingForJoin, snap.Phase)

	snap = repo.Register(ctx, room, session.Student())
	assert.True(t, snap.Connected(models.RoleDeveloper))
	assert.True(t, snap.Connected(models.RoleStudent))
	assert.Equal(t, 1, repo.Count())

	assert.ElementsMatch(t, []uuid.UUID{session.ID}, repo.RoomsOf(ctx, session.StudentID))

	snap, removed, err := repo.Unregister(ctx, session.ID, session.Developer())
	require.NoError(t, err)
	assert.False(t, removed)
	assert.False(t, snap.Connected(models.RoleDeveloper))
	assert.Empty(t, repo.RoomsOf(ctx, session.DeveloperID))

	_, removed, err = repo.Unregister(ctx, session.ID, session.Student())
	require.NoError(t, err)
	assert.True(t, removed)

	_, ok := repo.Lookup(ctx, session.ID)
	assert.False(t, ok)

	_, _, err = repo.Unregister(ctx, session.ID, session.Student())
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestSessionRoomUpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRoomRepository()
	room, session := newRoom()
	repo.Register(ctx, room, session.Student())

	boom := errors.New("boom")
	_, err := repo.Update(ctx, session.ID, func(r *runtime.SignalingSession) error {
		r.Phase = runtime.PhaseInCall
		return boom
	})
	require.ErrorIs(t, err, boom)

	snap, ok := repo.Lookup(ctx, session.ID)
	require.True(t, ok)
	assert.Equal(t, runtime.PhaseWaitingForJoin, snap.Phase)
}

func TestSessionRoomUpdateDeletesEndedRoom(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRoomRepository()
	room, session := newRoom()
	repo.Register(ctx, room, session.Student())

	snap, err := repo.Update(ctx, session.ID, func(r *runtime.SignalingSession) error {
		r.Phase = runtime.PhaseEnded
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, runtime.PhaseEnded, snap.Phase)

	_, err = repo.Update(ctx, session.ID, func(r *runtime.SignalingSession) error { return nil })
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Zero(t, repo.Count())
}

func TestSessionRoomUpdateIsSerialized(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRoomRepository()
	room, session := newRoom()
	repo.Register(ctx, room, session.Student())

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ended int
	)

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, session.ID, func(r *runtime.SignalingSession) error {
				r.Phase = runtime.PhaseEnded
				return nil
			})
			if err == nil {
				mu.Lock()
				ended++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 1, ended)
}

func TestSignalingSessionLeaveResetsCall(t *testing.T) {
	room, _ := newRoom()
	room.SetConnected(models.RoleDeveloper, true)
	room.SetConnected(models.RoleStudent, true)
	room.Phase = runtime.PhaseEarlyEndRequested
	room.SetEarlyEndPending(models.RoleStudent, true)

	room.Leave(models.RoleDeveloper)

	assert.Equal(t, runtime.PhaseWaitingForJoin, room.Phase)
	assert.False(t, room.AnyEarlyEndPending())
	assert.False(t, room.Empty())
}
