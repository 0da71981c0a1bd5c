package callclient

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qrave1/MentorCall/internal/domain/apperr"
	"github.com/qrave1/MentorCall/internal/domain/events"
	"github.com/qrave1/MentorCall/internal/domain/models"
)

var startsAt = time.Date(2030, 1, 15, 10, 0, 0, 0, time.UTC)

type callFixture struct {
	call      *Call
	transport *fakeTransport
	peer      *fakePeer
	api       *fakeAPI
	recorder  *fakeRecorder
	session   *models.Session
}

func newCallFixture(t *testing.T, role models.Role) *callFixture {
	t.Helper()

	session := &models.Session{
		ID:          uuid.New(),
		DeveloperID: uuid.New(),
		StudentID:   uuid.New(),
		Date:        time.Date(2030, 1, 15, 0, 0, 0, 0, time.UTC),
		StartTime:   "10:00",
		Hours:       1,
		Status:      models.SessionStatusConfirmed,
	}

	userID := session.StudentID
	if role == models.RoleDeveloper {
		userID = session.DeveloperID
	}

	recordingPath := filepath.Join(t.TempDir(), "call.ogg")
	require.NoError(t, os.WriteFile(recordingPath, []byte("OggS"), 0o600))

	f := &callFixture{
		transport: newFakeTransport(),
		peer:      &fakePeer{},
		api:       &fakeAPI{},
		recorder:  &fakeRecorder{path: recordingPath},
		session:   session,
	}

	call, err := NewCall(zap.NewNop(), Options{
		Session:   session,
		UserID:    userID,
		Role:      role,
		Name:      "Alice",
		Location:  time.UTC,
		Transport: f.transport,
		API:       f.api,
		NewPeer:   f.peer.factory(),
		Recorder:  f.recorder,
		Uploader:  NewUploader(zap.NewNop(), f.api).WithBackoff(time.Millisecond, 2),
	})
	require.NoError(t, err)

	f.call = call

	return f
}

func (f *callFixture) deliver(t *testing.T, eventType string, payload any) {
	t.Helper()

	msg, err := events.New(eventType, payload)
	require.NoError(t, err)

	f.call.Handle(context.Background(), msg)
}

// inCall доводит звонок до InCall с нужной стороны
func (f *callFixture) inCall(t *testing.T) {
	t.Helper()

	ctx := context.Background()
	f.call.Tick(startsAt)

	if f.call.Role() == models.RoleStudent {
		require.NoError(t, f.call.AskToJoin(ctx))
		f.deliver(t, events.TypeJoinAccepted, events.SessionEvent{SessionID: f.session.ID.String()})
	} else {
		f.deliver(t, events.TypeJoinRequest, events.JoinRequestEvent{SessionID: f.session.ID.String(), StudentName: "Bob"})
		require.NoError(t, f.call.Accept(ctx))
	}

	require.Equal(t, PhaseInCall, f.call.Phase())
}

func TestWaitingRoomOpensAtScheduledStart(t *testing.T) {
	f := newCallFixture(t, models.RoleStudent)
	ctx := context.Background()

	assert.Equal(t, startsAt, f.call.StartsAt())

	err := f.call.AskToJoin(ctx)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	assert.Equal(t, PhaseIdle, f.call.Tick(startsAt.Add(-time.Second)))
	assert.ErrorIs(t, f.call.AskToJoin(ctx), apperr.ErrInvalidState)
	assert.Empty(t, f.transport.types())

	assert.Equal(t, PhaseWaitingForJoin, f.call.Tick(startsAt))

	require.NoError(t, f.call.AskToJoin(ctx))
	assert.Equal(t, PhaseJoinRequested, f.call.Phase())

	last := f.transport.last()
	assert.Equal(t, events.TypeAskToJoin, last.Type)
	assert.JSONEq(t, `{"sessionId":"`+f.session.ID.String()+`","studentName":"Alice"}`, string(last.Data))

	// повторная просьба допустима, пока разработчик молчит
	require.NoError(t, f.call.AskToJoin(ctx))
}

func TestStudentRepeatsJoinRequestWhenDeveloperArrives(t *testing.T) {
	f := newCallFixture(t, models.RoleStudent)
	ctx := context.Background()

	f.call.Tick(startsAt)
	f.deliver(t, events.TypeRoomJoined, events.RoomJoinedEvent{SessionID: f.session.ID.String(), PeerConnected: false})
	require.NoError(t, f.call.AskToJoin(ctx))

	f.deliver(t, events.TypePeerJoined, events.PeerEvent{SessionID: f.session.ID.String(), Role: string(models.RoleDeveloper)})

	assert.True(t, f.call.PeerPresent())
	assert.Equal(t, PhaseJoinRequested, f.call.Phase())
	assert.Equal(t, []string{events.TypeAskToJoin, events.TypeAskToJoin}, f.transport.types())
}

func TestDeveloperDoesNotAskWhenStudentArrives(t *testing.T) {
	f := newCallFixture(t, models.RoleDeveloper)

	f.call.Tick(startsAt)
	f.deliver(t, events.TypePeerJoined, events.PeerEvent{SessionID: f.session.ID.String(), Role: string(models.RoleStudent)})

	assert.Equal(t, PhaseWaitingForJoin, f.call.Phase())
	assert.Empty(t, f.transport.types())
}

func TestStudentInitiatesNegotiation(t *testing.T) {
	f := newCallFixture(t, models.RoleStudent)

	assert.ErrorIs(t, f.call.Accept(context.Background()), apperr.ErrForbidden)

	f.inCall(t)

	assert.Equal(t, 1, f.peer.offers)

	offer := f.transport.last()
	assert.Equal(t, events.TypeSignal, offer.Type)
	assert.JSONEq(t,
		`{"sessionId":"`+f.session.ID.String()+`","data":{"kind":"offer","sdp":"v=0"}}`,
		string(offer.Data),
	)

	f.deliver(t, events.TypeSignal, events.SignalEvent{
		SessionID: f.session.ID.String(),
		Data:      events.Opaque(`{"kind":"answer","sdp":"v=0"}`),
	})

	require.Len(t, f.peer.signals, 1)
	assert.JSONEq(t, `{"kind":"answer","sdp":"v=0"}`, string(f.peer.signals[0]))
}

func TestDeveloperAcceptsAndAnswers(t *testing.T) {
	f := newCallFixture(t, models.RoleDeveloper)
	ctx := context.Background()

	assert.ErrorIs(t, f.call.Accept(ctx), apperr.ErrInvalidState)
	assert.ErrorIs(t, f.call.AskToJoin(ctx), apperr.ErrForbidden)

	f.deliver(t, events.TypeJoinRequest, events.JoinRequestEvent{SessionID: f.session.ID.String(), StudentName: "Bob"})
	assert.Equal(t, PhaseJoinRequested, f.call.Phase())
	assert.Equal(t, "Bob", f.call.StudentName())

	require.NoError(t, f.call.Accept(ctx))
	assert.Equal(t, PhaseInCall, f.call.Phase())
	assert.Equal(t, events.TypeAcceptJoin, f.transport.last().Type)
	assert.Zero(t, f.peer.offers)
}

func TestNegotiationFailureKeepsCallUsable(t *testing.T) {
	f := newCallFixture(t, models.RoleDeveloper)
	f.inCall(t)

	f.peer.signalErr = errors.Join(apperr.ErrNegotiation, errors.New("bad sdp"))

	f.deliver(t, events.TypeSignal, events.SignalEvent{SessionID: f.session.ID.String(), Data: events.Opaque(`{"kind":"offer"}`)})

	assert.ErrorIs(t, f.call.LastError(), apperr.ErrNegotiation)
	assert.Equal(t, PhaseInCall, f.call.Phase())

	require.NoError(t, f.call.ChangeCode(context.Background(), "fmt.Println()", "go"))
	assert.Equal(t, events.TypeCodeChange, f.transport.last().Type)
}

func TestEditorLastWriterWins(t *testing.T) {
	f := newCallFixture(t, models.RoleStudent)
	ctx := context.Background()

	assert.ErrorIs(t, f.call.ToggleEditor(ctx, true), apperr.ErrInvalidState)

	f.inCall(t)

	require.NoError(t, f.call.ToggleEditor(ctx, true))
	require.NoError(t, f.call.ChangeCode(ctx, "a := 1", "go"))

	f.deliver(t, events.TypeCodeChange, events.CodeChangeEvent{SessionID: f.session.ID.String(), Code: "print(1)", Language: "python"})
	f.deliver(t, events.TypeEditorToggle, events.EditorToggleEvent{SessionID: f.session.ID.String(), Show: false})

	assert.Equal(t, EditorState{Visible: false, Code: "print(1)", Language: "python"}, f.call.Editor())
}

func TestEarlyEndRejectedReturnsToCall(t *testing.T) {
	f := newCallFixture(t, models.RoleStudent)
	ctx := context.Background()
	f.inCall(t)

	require.NoError(t, f.call.RequestEarlyEnd(ctx))
	assert.Equal(t, PhaseEarlyEndRequested, f.call.Phase())
	assert.JSONEq(t,
		`{"sessionId":"`+f.session.ID.String()+`","from":"student","to":"developer"}`,
		string(f.transport.last().Data),
	)

	assert.ErrorIs(t, f.call.RequestEarlyEnd(ctx), apperr.ErrInvalidState)

	// на свой же запрос ответить нельзя
	_, err := f.call.AcceptEarlyEnd(ctx)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	f.deliver(t, events.TypeEarlyEndRejected, events.SessionEvent{SessionID: f.session.ID.String()})
	assert.Equal(t, PhaseInCall, f.call.Phase())
}

func TestAcceptingEarlyEndFinishesCall(t *testing.T) {
	f := newCallFixture(t, models.RoleDeveloper)
	ctx := context.Background()
	f.inCall(t)

	f.deliver(t, events.TypeEarlyEndRequest, events.EarlyEndRequestEvent{SessionID: f.session.ID.String(), From: "student", To: "developer"})
	assert.Equal(t, PhaseEarlyEndRequested, f.call.Phase())
	assert.True(t, f.call.IncomingEarlyEnd())

	result, err := f.call.AcceptEarlyEnd(ctx)
	require.NoError(t, err)

	assert.Equal(t, PhaseEnded, result.Phase)
	assert.Equal(t, DestinationSessions, result.Destination)
	assert.NoError(t, result.UploadErr)
	assert.NoError(t, result.CompleteErr)
	assert.Equal(t, f.recorder.path, result.RecordingPath)

	assert.True(t, f.recorder.closed)
	assert.True(t, f.peer.closed)
	assert.Equal(t, []byte("OggS"), f.api.uploaded)
	assert.Equal(t, 1, f.api.completions())

	// второе завершение ничего не повторяет
	f.deliver(t, events.TypeSessionEnded, events.SessionEvent{SessionID: f.session.ID.String()})
	assert.Equal(t, 1, f.api.completions())

	select {
	case <-f.call.Done():
	default:
		t.Fatal("done is not closed")
	}
}

func TestSessionEndedWithFailedUploadStillNavigates(t *testing.T) {
	f := newCallFixture(t, models.RoleStudent)
	f.inCall(t)

	f.api.uploadErrs = []error{
		&APIError{Status: 503},
		&APIError{Status: 503},
		&APIError{Status: 503},
	}

	f.deliver(t, events.TypeSessionEnded, events.SessionEvent{SessionID: f.session.ID.String()})

	<-f.call.Done()

	result := f.call.snapshot()
	assert.Equal(t, PhaseEnded, result.Phase)
	assert.Equal(t, DestinationReview, result.Destination)
	assert.ErrorIs(t, result.UploadErr, apperr.ErrUpload)
	assert.Equal(t, 3, f.api.uploads)
	assert.Equal(t, 1, f.api.completions())
}

func TestOwnEarlyEndAccepted(t *testing.T) {
	f := newCallFixture(t, models.RoleStudent)
	f.inCall(t)

	// подтверждение без запроса игнорируется
	f.deliver(t, events.TypeEarlyEndAccepted, events.SessionEvent{SessionID: f.session.ID.String()})
	assert.Equal(t, PhaseInCall, f.call.Phase())

	require.NoError(t, f.call.RequestEarlyEnd(context.Background()))
	f.deliver(t, events.TypeEarlyEndAccepted, events.SessionEvent{SessionID: f.session.ID.String()})

	assert.Equal(t, PhaseEnded, f.call.Phase())
}

func TestRunAbandonsOnLostRelay(t *testing.T) {
	f := newCallFixture(t, models.RoleStudent)

	var (
		mu     sync.Mutex
		phases []Phase
	)

	f.call.onPhase = func(_ *Call, phase Phase) {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, phase)
	}
	f.call.now = func() time.Time { return startsAt }

	f.transport.inbox <- events.Message{Type: events.TypePong}
	f.transport.err <- ErrTransportClosed

	result, err := f.call.Run(context.Background())

	assert.ErrorIs(t, err, ErrTransportClosed)
	assert.Equal(t, PhaseAbandoned, result.Phase)
	assert.Equal(t, events.TypeJoinSessionRoom, f.transport.types()[0])
	assert.Zero(t, f.api.completions())
	assert.True(t, f.recorder.closed)

	mu.Lock()
	assert.Contains(t, phases, PhaseAbandoned)
	mu.Unlock()
}

func TestRunReturnsAfterSessionEnded(t *testing.T) {
	f := newCallFixture(t, models.RoleDeveloper)
	f.call.now = func() time.Time { return startsAt }

	f.transport.inbox <- mustEvent(t, events.TypeJoinRequest, events.JoinRequestEvent{StudentName: "Bob"})

	f.call.onPhase = func(c *Call, phase Phase) {
		if phase == PhaseJoinRequested {
			require.NoError(t, c.Accept(context.Background()))
			f.transport.inbox <- mustEvent(t, events.TypeSessionEnded, events.SessionEvent{SessionID: f.session.ID.String()})
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := f.call.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, PhaseEnded, result.Phase)
	assert.Equal(t, DestinationSessions, result.Destination)
	assert.Equal(t, 1, f.api.completions())
}

func mustEvent(t *testing.T, eventType string, payload any) events.Message {
	t.Helper()

	msg, err := events.New(eventType, payload)
	require.NoError(t, err)

	return msg
}
