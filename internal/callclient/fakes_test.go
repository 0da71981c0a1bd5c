package callclient

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/rtp"

	"github.com/qrave1/MentorCall/internal/domain/events"
	"github.com/qrave1/MentorCall/internal/domain/models"
)

type fakeTransport struct {
	mu    sync.Mutex
	sent  []events.Message
	inbox chan events.Message
	err   chan error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbox: make(chan events.Message, 16),
		err:   make(chan error, 1),
	}
}

func (t *fakeTransport) Send(_ context.Context, msg events.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, msg)
	return nil
}

func (t *fakeTransport) Receive(ctx context.Context) (events.Message, error) {
	select {
	case msg := <-t.inbox:
		return msg, nil
	case err := <-t.err:
		return events.Message{}, err
	case <-ctx.Done():
		return events.Message{}, ctx.Err()
	}
}

func (t *fakeTransport) Close() error { return nil }

func (t *fakeTransport) types() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	types := make([]string, 0, len(t.sent))
	for _, msg := range t.sent {
		types = append(types, msg.Type)
	}

	return types
}

func (t *fakeTransport) last() events.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent[len(t.sent)-1]
}

type fakePeer struct {
	mu        sync.Mutex
	offers    int
	signals   [][]byte
	signalErr error
	closed    bool
	send      SignalFunc
}

func (p *fakePeer) Offer(context.Context) error {
	p.mu.Lock()
	p.offers++
	send := p.send
	p.mu.Unlock()

	send([]byte(`{"kind":"offer","sdp":"v=0"}`))

	return nil
}

func (p *fakePeer) HandleSignal(_ context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, data)
	return p.signalErr
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePeer) factory() PeerFactory {
	return func(_ context.Context, send SignalFunc) (Peer, error) {
		p.mu.Lock()
		p.send = send
		p.mu.Unlock()
		return p, nil
	}
}

type fakeRecorder struct {
	path   string
	closed bool
}

func (r *fakeRecorder) WriteRTP(*rtp.Packet) error { return nil }
func (r *fakeRecorder) Path() string               { return r.path }
func (r *fakeRecorder) Close() error {
	r.closed = true
	return nil
}

type fakeAPI struct {
	mu sync.Mutex

	completed   []uuid.UUID
	completeErr error

	// uploadErrs - ошибки по порядку попыток, дальше успех
	uploadErrs []error
	uploads    int
	uploaded   []byte
}

func (a *fakeAPI) GetSession(_ context.Context, sessionID uuid.UUID) (*models.Session, error) {
	return &models.Session{ID: sessionID}, nil
}

func (a *fakeAPI) Complete(_ context.Context, sessionID uuid.UUID) (*models.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.completed = append(a.completed, sessionID)
	if a.completeErr != nil {
		return nil, a.completeErr
	}

	return &models.Session{ID: sessionID, Status: models.SessionStatusCompleted}, nil
}

func (a *fakeAPI) SaveRecording(_ context.Context, _ uuid.UUID, _ string, r io.Reader) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.uploads++
	if a.uploads <= len(a.uploadErrs) {
		return a.uploadErrs[a.uploads-1]
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	a.uploaded = data

	return nil
}

func (a *fakeAPI) completions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.completed)
}
