package callclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qrave1/MentorCall/internal/application/constant"
	"github.com/qrave1/MentorCall/internal/domain/apperr"
	"github.com/qrave1/MentorCall/internal/domain/events"
	"github.com/qrave1/MentorCall/internal/domain/models"
)

type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseWaitingForJoin    Phase = "waiting-for-join"
	PhaseJoinRequested     Phase = "join-requested"
	PhaseInCall            Phase = "in-call"
	PhaseEarlyEndRequested Phase = "early-end-requested"
	PhaseEnded             Phase = "ended"
	PhaseAbandoned         Phase = "abandoned"
)

// Destination - куда уходит участник после звонка
type Destination string

const (
	DestinationSessions Destination = "sessions"
	DestinationReview   Destination = "review"
)

const tickInterval = time.Second

// Result - итог звонка. Ошибки загрузки и завершения не фатальны.
type Result struct {
	Phase         Phase
	Destination   Destination
	RecordingPath string
	UploadErr     error
	CompleteErr   error
}

// EditorState - общий редактор, побеждает последняя запись
type EditorState struct {
	Visible  bool
	Code     string
	Language string
}

type Options struct {
	Session   *models.Session
	UserID    uuid.UUID
	Role      models.Role
	Name      string
	Location  *time.Location
	Transport Transport
	API       SessionAPI
	NewPeer   PeerFactory
	Recorder  Recorder
	Uploader  *Uploader

	// OnPhase вызывается после каждого перехода, вне блокировки
	OnPhase func(c *Call, phase Phase)
}

// Call - клиентская половина координатора звонка
type Call struct {
	log *zap.Logger
	now func() time.Time

	session   *models.Session
	userID    uuid.UUID
	role      models.Role
	name      string
	startsAt  time.Time
	transport Transport
	api       SessionAPI
	newPeer   PeerFactory
	recorder  Recorder
	uploader  *Uploader
	onPhase   func(c *Call, phase Phase)

	mu          sync.Mutex
	phase       Phase
	peer        Peer
	peerPresent bool
	studentName string
	outgoingEnd bool
	incomingEnd bool
	editor      EditorState
	lastErr     error

	endOnce sync.Once
	done    chan struct{}
	result  Result
}

func NewCall(log *zap.Logger, opts Options) (*Call, error) {
	if opts.Session == nil || opts.Transport == nil || opts.API == nil {
		return nil, fmt.Errorf("session, transport and api are required: %w", apperr.ErrInvalidInput)
	}

	if opts.Role != models.RoleDeveloper && opts.Role != models.RoleStudent {
		return nil, fmt.Errorf("role %q cannot take part in a call: %w", opts.Role, apperr.ErrInvalidInput)
	}

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	startsAt, err := opts.Session.ScheduledStart(loc)
	if err != nil {
		return nil, fmt.Errorf("session start: %w", err)
	}

	return &Call{
		log: log.With(
			zap.Stringer(constant.SessionID, opts.Session.ID),
			zap.String(constant.Role, string(opts.Role)),
		),
		now:       time.Now,
		session:   opts.Session,
		userID:    opts.UserID,
		role:      opts.Role,
		name:      opts.Name,
		startsAt:  startsAt,
		transport: opts.Transport,
		api:       opts.API,
		newPeer:   opts.NewPeer,
		recorder:  opts.Recorder,
		uploader:  opts.Uploader,
		onPhase:   opts.OnPhase,
		phase:     PhaseIdle,
		done:      make(chan struct{}),
	}, nil
}

func (c *Call) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Call) Role() models.Role {
	return c.role
}

func (c *Call) StartsAt() time.Time {
	return c.startsAt
}

func (c *Call) Editor() EditorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editor
}

func (c *Call) PeerPresent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerPresent
}

// StudentName - имя из последнего join-request
func (c *Call) StudentName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.studentName
}

// IncomingEarlyEnd - собеседник ждет ответа на досрочное завершение
func (c *Call) IncomingEarlyEnd() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.incomingEnd
}

// LastError - последняя ошибка релея или согласования, показывается пользователю
func (c *Call) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Done закрывается после Ended или Abandoned
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Join регистрирует участника в комнате сессии
func (c *Call) Join(ctx context.Context) error {
	return c.send(ctx, events.TypeJoinSessionRoom, events.JoinSessionRoomEvent{
		SessionID: c.session.ID.String(),
		UserID:    c.userID.String(),
		Role:      string(c.role),
	})
}

// Tick открывает зал ожидания, когда наступило время сессии
func (c *Call) Tick(now time.Time) Phase {
	c.mu.Lock()
	changed := c.phase == PhaseIdle && !now.Before(c.startsAt)
	if changed {
		c.phase = PhaseWaitingForJoin
	}
	phase := c.phase
	c.mu.Unlock()

	if changed {
		c.changed(phase)
	}

	return phase
}

// AskToJoin - студент просит разработчика впустить его
func (c *Call) AskToJoin(ctx context.Context) error {
	err := c.transition(func() error {
		if c.role != models.RoleStudent {
			return fmt.Errorf("only the student asks to join: %w", apperr.ErrForbidden)
		}

		if c.phase != PhaseWaitingForJoin && c.phase != PhaseJoinRequested {
			return fmt.Errorf("ask to join in %s: %w", c.phase, apperr.ErrInvalidState)
		}

		c.phase = PhaseJoinRequested

		return nil
	})
	if err != nil {
		return err
	}

	return c.send(ctx, events.TypeAskToJoin, events.AskToJoinEvent{
		SessionID:   c.session.ID.String(),
		StudentName: c.name,
	})
}

// Accept - разработчик впускает студента; предложение соединения создает студент
func (c *Call) Accept(ctx context.Context) error {
	err := c.transition(func() error {
		if c.role != models.RoleDeveloper {
			return fmt.Errorf("only the developer accepts: %w", apperr.ErrForbidden)
		}

		if c.phase != PhaseJoinRequested {
			return fmt.Errorf("accept in %s: %w", c.phase, apperr.ErrInvalidState)
		}

		c.phase = PhaseInCall

		return nil
	})
	if err != nil {
		return err
	}

	if err = c.send(ctx, events.TypeAcceptJoin, events.SessionEvent{SessionID: c.session.ID.String()}); err != nil {
		return err
	}

	c.startPeer(ctx, false)

	return nil
}

func (c *Call) RequestEarlyEnd(ctx context.Context) error {
	err := c.transition(func() error {
		if c.phase != PhaseInCall && c.phase != PhaseEarlyEndRequested {
			return fmt.Errorf("early end in %s: %w", c.phase, apperr.ErrInvalidState)
		}

		if c.outgoingEnd {
			return fmt.Errorf("early end already requested: %w", apperr.ErrInvalidState)
		}

		c.outgoingEnd = true
		c.phase = PhaseEarlyEndRequested

		return nil
	})
	if err != nil {
		return err
	}

	return c.send(ctx, events.TypeEarlyEndRequest, events.EarlyEndRequestEvent{
		SessionID: c.session.ID.String(),
		From:      string(c.role),
		To:        string(c.session.Counterpart(c.role).Role),
	})
}

// AcceptEarlyEnd соглашается с запросом собеседника и завершает звонок
func (c *Call) AcceptEarlyEnd(ctx context.Context) (Result, error) {
	if err := c.requireIncomingEnd(); err != nil {
		return Result{}, err
	}

	if err := c.send(ctx, events.TypeAcceptEarlyEnd, events.SessionEvent{SessionID: c.session.ID.String()}); err != nil {
		return Result{}, err
	}

	return c.end(ctx), nil
}

func (c *Call) RejectEarlyEnd(ctx context.Context) error {
	if err := c.requireIncomingEnd(); err != nil {
		return err
	}

	if err := c.send(ctx, events.TypeRejectEarlyEnd, events.SessionEvent{SessionID: c.session.ID.String()}); err != nil {
		return err
	}

	c.clearEarlyEnd(false)

	return nil
}

// End завершает звонок без согласия собеседника, например по истечении времени
func (c *Call) End(ctx context.Context) (Result, error) {
	phase := c.Phase()
	if phase != PhaseInCall && phase != PhaseEarlyEndRequested {
		return Result{}, fmt.Errorf("end session in %s: %w", phase, apperr.ErrInvalidState)
	}

	if err := c.send(ctx, events.TypeSessionEnded, events.SessionEvent{SessionID: c.session.ID.String()}); err != nil {
		return Result{}, err
	}

	return c.end(ctx), nil
}

func (c *Call) ToggleEditor(ctx context.Context, show bool) error {
	if err := c.requireInCall(); err != nil {
		return err
	}

	c.mu.Lock()
	c.editor.Visible = show
	c.mu.Unlock()

	return c.send(ctx, events.TypeEditorToggle, events.EditorToggleEvent{SessionID: c.session.ID.String(), Show: show})
}

func (c *Call) ChangeCode(ctx context.Context, code, language string) error {
	if err := c.requireInCall(); err != nil {
		return err
	}

	c.mu.Lock()
	c.editor.Code, c.editor.Language = code, language
	c.mu.Unlock()

	return c.send(ctx, events.TypeCodeChange, events.CodeChangeEvent{
		SessionID: c.session.ID.String(),
		Code:      code,
		Language:  language,
	})
}

// Run читает события релея, пока звонок не закончится.
// Обрыв соединения теряет состояние звонка: возвращается ErrTransportClosed.
func (c *Call) Run(ctx context.Context) (Result, error) {
	if err := c.Join(ctx); err != nil {
		c.abandon()
		return c.snapshot(), err
	}

	inbox := make(chan events.Message)
	recvErr := make(chan error, 1)

	recvCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for {
			msg, err := c.transport.Receive(recvCtx)
			if err != nil {
				recvErr <- err
				return
			}

			select {
			case inbox <- msg:
			case <-recvCtx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	c.Tick(c.now())

	for {
		select {
		case <-c.done:
			return c.snapshot(), nil

		case msg := <-inbox:
			c.Handle(ctx, msg)

		case <-ticker.C:
			c.Tick(c.now())

		case err := <-recvErr:
			// Звонок мог закончиться раньше, чем закрылся сокет
			select {
			case <-c.done:
				return c.snapshot(), nil
			default:
			}

			c.abandon()

			return c.snapshot(), fmt.Errorf("relay connection lost in %s: %w", c.Phase(), err)

		case <-ctx.Done():
			c.abandon()
			return c.snapshot(), ctx.Err()
		}
	}
}

// Handle применяет событие релея
func (c *Call) Handle(ctx context.Context, msg events.Message) {
	switch msg.Type {
	case events.TypeRoomJoined:
		var ev events.RoomJoinedEvent
		if c.decode(msg, &ev) {
			c.mu.Lock()
			c.peerPresent = ev.PeerConnected
			c.mu.Unlock()

			c.log.Info("joined session room", zap.String("relay_phase", ev.Phase), zap.Bool("peer_connected", ev.PeerConnected))
		}

	case events.TypePeerJoined:
		c.mu.Lock()
		c.peerPresent = true
		reask := c.role == models.RoleStudent && c.phase == PhaseJoinRequested
		c.mu.Unlock()

		// Просьба, отправленная до прихода разработчика, релеем отброшена
		if reask {
			if err := c.AskToJoin(ctx); err != nil {
				c.log.Warn("repeat join request", zap.Error(err))
			}
		}

	case events.TypePeerLeft:
		c.mu.Lock()
		c.peerPresent = false
		c.mu.Unlock()

		c.log.Info("counterpart left the room", zap.String(constant.Phase, string(c.Phase())))

	case events.TypeJoinRequest:
		var ev events.JoinRequestEvent
		if !c.decode(msg, &ev) {
			return
		}

		_ = c.transition(func() error {
			if c.role != models.RoleDeveloper {
				return apperr.ErrInvalidState
			}

			// Студент может прийти чуть раньше нашего таймера
			if c.phase != PhaseIdle && c.phase != PhaseWaitingForJoin && c.phase != PhaseJoinRequested {
				return apperr.ErrInvalidState
			}

			c.studentName = ev.StudentName
			c.phase = PhaseJoinRequested

			return nil
		})

	case events.TypeJoinAccepted:
		err := c.transition(func() error {
			if c.role != models.RoleStudent || c.phase != PhaseJoinRequested {
				return apperr.ErrInvalidState
			}

			c.phase = PhaseInCall

			return nil
		})
		if err == nil {
			c.startPeer(ctx, true)
		}

	case events.TypeSignal:
		var ev events.SignalEvent
		if !c.decode(msg, &ev) {
			return
		}

		c.mu.Lock()
		peer := c.peer
		c.mu.Unlock()

		if peer == nil {
			c.log.Warn("signal without a peer connection")
			return
		}

		if err := peer.HandleSignal(ctx, ev.Data); err != nil {
			c.fail("handle signal", err)
		}

	case events.TypeCodeChange:
		var ev events.CodeChangeEvent
		if c.decode(msg, &ev) {
			c.mu.Lock()
			c.editor.Code, c.editor.Language = ev.Code, ev.Language
			c.mu.Unlock()
		}

	case events.TypeEditorToggle:
		var ev events.EditorToggleEvent
		if c.decode(msg, &ev) {
			c.mu.Lock()
			c.editor.Visible = ev.Show
			c.mu.Unlock()
		}

	case events.TypeEarlyEndRequest:
		_ = c.transition(func() error {
			if c.phase != PhaseInCall && c.phase != PhaseEarlyEndRequested {
				return apperr.ErrInvalidState
			}

			c.incomingEnd = true
			c.phase = PhaseEarlyEndRequested

			return nil
		})

	case events.TypeEarlyEndAccepted:
		if c.Phase() == PhaseEarlyEndRequested {
			c.end(ctx)
		}

	case events.TypeEarlyEndRejected:
		c.clearEarlyEnd(true)

	case events.TypeSessionEnded:
		c.end(ctx)

	case events.TypeSessionCompleted:
		c.log.Info("session completed")

	case events.TypeError:
		var ev events.ErrorEvent
		if c.decode(msg, &ev) {
			c.fail("relay rejected event", errors.New(ev.Message))
		}

	case events.TypePong, events.TypeReceiveMessage:

	default:
		c.log.Debug("unknown event", zap.String(constant.Event, msg.Type))
	}
}

func (c *Call) startPeer(ctx context.Context, initiator bool) {
	if c.newPeer == nil {
		return
	}

	peer, err := c.newPeer(ctx, func(data []byte) {
		if err := c.send(ctx, events.TypeSignal, events.SignalEvent{SessionID: c.session.ID.String(), Data: data}); err != nil {
			c.log.Warn("send signal", zap.Error(err))
		}
	})
	if err != nil {
		c.fail("create peer", fmt.Errorf("%w: %w", apperr.ErrNegotiation, err))
		return
	}

	c.mu.Lock()
	c.peer = peer
	c.mu.Unlock()

	if !initiator {
		return
	}

	if err = peer.Offer(ctx); err != nil {
		c.fail("create offer", err)
	}
}

// end выполняется один раз: останавливает медиа, отправляет запись, завершает сессию
func (c *Call) end(ctx context.Context) Result {
	c.endOnce.Do(func() {
		c.mu.Lock()
		c.phase = PhaseEnded
		c.outgoingEnd, c.incomingEnd = false, false
		peer := c.peer
		c.peer = nil
		c.mu.Unlock()

		ctx := context.WithoutCancel(ctx)

		if peer != nil {
			if err := peer.Close(); err != nil {
				c.log.Warn("close peer", zap.Error(err))
			}
		}

		result := Result{Phase: PhaseEnded, Destination: c.destination()}

		if c.recorder != nil {
			if err := c.recorder.Close(); err != nil {
				c.log.Warn("finalize recording", zap.Error(err))
			}

			result.RecordingPath = c.recorder.Path()

			if c.uploader != nil {
				if err := c.uploader.Upload(ctx, c.session.ID, result.RecordingPath); err != nil {
					c.log.Warn("recording was not uploaded", zap.Error(err))
					result.UploadErr = err
				}
			}
		}

		if _, err := c.api.Complete(ctx, c.session.ID); err != nil {
			c.log.Error("complete session", zap.Error(err))
			result.CompleteErr = err
		}

		c.mu.Lock()
		c.result = result
		c.mu.Unlock()

		c.log.Info("call ended", zap.String("destination", string(result.Destination)))

		close(c.done)
		c.changed(PhaseEnded)
	})

	return c.snapshot()
}

// abandon - звонок прерван до завершения, запись не отправляется
func (c *Call) abandon() {
	c.endOnce.Do(func() {
		c.mu.Lock()
		c.phase = PhaseAbandoned
		peer := c.peer
		c.peer = nil
		c.result = Result{Phase: PhaseAbandoned, Destination: c.destination()}
		c.mu.Unlock()

		if peer != nil {
			_ = peer.Close()
		}

		if c.recorder != nil {
			_ = c.recorder.Close()
		}

		close(c.done)
		c.changed(PhaseAbandoned)
	})
}

func (c *Call) destination() Destination {
	if c.role == models.RoleDeveloper {
		return DestinationSessions
	}

	return DestinationReview
}

func (c *Call) snapshot() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

func (c *Call) requireInCall() error {
	phase := c.Phase()
	if phase != PhaseInCall && phase != PhaseEarlyEndRequested {
		return fmt.Errorf("editor in %s: %w", phase, apperr.ErrInvalidState)
	}

	return nil
}

func (c *Call) requireIncomingEnd() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseEarlyEndRequested || !c.incomingEnd {
		return fmt.Errorf("no early end request to answer: %w", apperr.ErrInvalidState)
	}

	return nil
}

// clearEarlyEnd снимает запрос; outgoing - был ли это наш запрос
func (c *Call) clearEarlyEnd(outgoing bool) {
	_ = c.transition(func() error {
		if c.phase != PhaseEarlyEndRequested {
			return apperr.ErrInvalidState
		}

		if outgoing {
			c.outgoingEnd = false
		} else {
			c.incomingEnd = false
		}

		if !c.outgoingEnd && !c.incomingEnd {
			c.phase = PhaseInCall
		}

		return nil
	})
}

// transition меняет фазу под блокировкой и уведомляет о смене после нее
func (c *Call) transition(fn func() error) error {
	c.mu.Lock()
	before := c.phase
	err := fn()
	after := c.phase
	c.mu.Unlock()

	if err != nil {
		return err
	}

	if after != before {
		c.changed(after)
	}

	return nil
}

func (c *Call) changed(phase Phase) {
	c.log.Info("call phase changed", zap.String(constant.Phase, string(phase)))

	if c.onPhase != nil {
		c.onPhase(c, phase)
	}
}

func (c *Call) fail(msg string, err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()

	c.log.Warn(msg, zap.Error(err))
}

func (c *Call) send(ctx context.Context, eventType string, payload any) error {
	msg, err := events.New(eventType, payload)
	if err != nil {
		return err
	}

	return c.transport.Send(ctx, msg)
}

func (c *Call) decode(msg events.Message, v any) bool {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		c.log.Warn("malformed event", zap.Error(err), zap.String(constant.Event, msg.Type))
		return false
	}

	return true
}
