package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/qrave1/MentorCall/internal/domain/apperr"
	"github.com/qrave1/MentorCall/internal/domain/events"
	"github.com/qrave1/MentorCall/internal/domain/models"
	"github.com/qrave1/MentorCall/internal/infra/adapters/payment"
	"github.com/qrave1/MentorCall/internal/infra/adapters/postgres/repository"
)

// fakeWS запоминает все отправленные события
type fakeWS struct {
	mu        sync.Mutex
	connected map[uuid.UUID]bool
	sent      map[uuid.UUID][]events.Message
}

func newFakeWS(online ...uuid.UUID) *fakeWS {
	f := &fakeWS{connected: map[uuid.UUID]bool{}, sent: map[uuid.UUID][]events.Message{}}
	for _, id := range online {
		f.connected[id] = true
	}

	return f
}

func (f *fakeWS) Add(userID uuid.UUID, _ *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected[userID] = true
}

func (f *fakeWS) Remove(userID uuid.UUID, _ *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.connected, userID)
}

func (f *fakeWS) Write(userID uuid.UUID, payload any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.connected[userID] {
		return false
	}

	f.sent[userID] = append(f.sent[userID], payload.(events.Message))

	return true
}

func (f *fakeWS) IsConnected(userID uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected[userID]
}

func (f *fakeWS) GetAllConnected() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(f.connected))
	for id := range f.connected {
		ids = append(ids, id)
	}

	return ids
}

func (f *fakeWS) messages(userID uuid.UUID) []events.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.sent[userID])
}

func (f *fakeWS) types(userID uuid.UUID) []string {
	var out []string
	for _, m := range f.messages(userID) {
		out = append(out, m.Type)
	}

	return out
}

func (f *fakeWS) last(userID uuid.UUID) (events.Message, bool) {
	msgs := f.messages(userID)
	if len(msgs) == 0 {
		return events.Message{}, false
	}

	return msgs[len(msgs)-1], true
}

func (f *fakeWS) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = map[uuid.UUID][]events.Message{}
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[uuid.UUID]*models.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}

	return r
}

func (r *fakeUserRepo) CreateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == user.Username {
			return fmt.Errorf("create user: %w", apperr.ErrConflict)
		}
	}

	copied := *user
	r.users[user.ID] = &copied

	return nil
}

func (r *fakeUserRepo) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}

	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}

	return nil, apperr.ErrNotFound
}

type fakeDeveloperRepo struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*models.DeveloperProfile
}

func newFakeDeveloperRepo(profiles ...*models.DeveloperProfile) *fakeDeveloperRepo {
	r := &fakeDeveloperRepo{profiles: map[uuid.UUID]*models.DeveloperProfile{}}
	for _, p := range profiles {
		r.profiles[p.UserID] = p
	}

	return r
}

func (r *fakeDeveloperRepo) GetProfile(_ context.Context, userID uuid.UUID) (*models.DeveloperProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, apperr.ErrNotFound
	}

	copied := *p
	return &copied, nil
}

func (r *fakeDeveloperRepo) UpsertProfile(_ context.Context, profile *models.DeveloperProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *profile
	r.profiles[profile.UserID] = &copied

	return nil
}

// fakeSessionRepo сериализует Book одним мьютексом, как блокировка строки профиля в БД
type fakeSessionRepo struct {
	mu         sync.Mutex
	developers *fakeDeveloperRepo
	sessions   map[uuid.UUID]*models.Session
}

func newFakeSessionRepo(developers *fakeDeveloperRepo, sessions ...*models.Session) *fakeSessionRepo {
	r := &fakeSessionRepo{developers: developers, sessions: map[uuid.UUID]*models.Session{}}
	for _, s := range sessions {
		r.sessions[s.ID] = s
	}

	return r
}

func (r *fakeSessionRepo) Book(ctx context.Context, session *models.Session, validate repository.BookingValidator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, err := r.developers.GetProfile(ctx, session.DeveloperID)
	if err != nil {
		return err
	}

	if err = validate(profile, r.bookedLocked(session.DeveloperID, session.Date)); err != nil {
		return err
	}

	copied := *session
	r.sessions[session.ID] = &copied

	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}

	copied := *s
	return &copied, nil
}

func (r *fakeSessionRepo) ListByParticipant(_ context.Context, userID uuid.UUID) ([]*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Session
	for _, s := range r.sessions {
		if s.DeveloperID == userID || s.StudentID == userID {
			copied := *s
			out = append(out, &copied)
		}
	}

	return out, nil
}

func (r *fakeSessionRepo) BookedOn(_ context.Context, developerID uuid.UUID, date time.Time) ([]models.BookedSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bookedLocked(developerID, date), nil
}

func (r *fakeSessionRepo) bookedLocked(developerID uuid.UUID, date time.Time) []models.BookedSession {
	var booked []models.BookedSession
	for _, s := range r.sessions {
		if s.DeveloperID == developerID && s.Date.Equal(date) && s.Status.BlocksAvailability() {
			booked = append(booked, models.BookedSession{StartTime: s.StartTime, EndTime: s.EndTime})
		}
	}

	return booked
}

func (r *fakeSessionRepo) UpdateStatus(
	_ context.Context,
	id uuid.UUID,
	from []models.SessionStatus,
	to models.SessionStatus,
) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || !slices.Contains(from, s.Status) {
		return nil, fmt.Errorf("update session status to %s: %w", to, apperr.ErrConflict)
	}

	s.Status = to
	copied := *s

	return &copied, nil
}

func (r *fakeSessionRepo) SetPaymentIntent(_ context.Context, id uuid.UUID, intentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return apperr.ErrNotFound
	}

	s.PaymentIntentID = &intentID

	return nil
}

func (r *fakeSessionRepo) SetRecordingPath(_ context.Context, id uuid.UUID, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return apperr.ErrNotFound
	}

	s.RecordingPath = &path

	return nil
}

func (r *fakeSessionRepo) status(id uuid.UUID) models.SessionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id].Status
}

type fakeChatRepo struct {
	mu       sync.Mutex
	messages []*models.ChatMessage
}

func (r *fakeChatRepo) Create(_ context.Context, msg *models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *fakeChatRepo) ListByRoom(_ context.Context, roomID string, limit int) ([]*models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.ChatMessage
	for _, m := range r.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}

	if len(out) > limit {
		out = out[len(out)-limit:]
	}

	return out, nil
}

type fakeGateway struct {
	createErr  error
	authorized bool
}

func (g *fakeGateway) CreateIntent(_ context.Context, sessionID uuid.UUID, _ float64) (payment.Intent, error) {
	if g.createErr != nil {
		return payment.Intent{}, g.createErr
	}

	return payment.Intent{ID: "pi_" + sessionID.String(), ClientSecret: "secret_" + sessionID.String()}, nil
}

func (g *fakeGateway) IsAuthorized(_ context.Context, _ string) (bool, error) {
	return g.authorized, nil
}

type fakeRecordingStore struct {
	err   error
	saved map[uuid.UUID]string
}

func (s *fakeRecordingStore) Save(_ context.Context, sessionID uuid.UUID, filename string, r io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	if s.saved == nil {
		s.saved = map[uuid.UUID]string{}
	}
	s.saved[sessionID] = string(data)

	return "/recordings/" + sessionID.String() + "/" + filename, nil
}

type fakeCompleter struct {
	mu    sync.Mutex
	calls []uuid.UUID
}

func (c *fakeCompleter) Complete(ctx context.Context, _ uuid.UUID, sessionID uuid.UUID) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, sessionID)
	return &models.Session{ID: sessionID, Status: models.SessionStatusCompleted}, nil
}

func (c *fakeCompleter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type fakeChatSender struct {
	sent []string
	err  error
}

func (c *fakeChatSender) Send(_ context.Context, from, to uuid.UUID, text string) (*models.ChatMessage, error) {
	if c.err != nil {
		return nil, c.err
	}

	c.sent = append(c.sent, text)

	return models.NewChatMessage(from, to, text), nil
}

var errBoom = errors.New("boom")
