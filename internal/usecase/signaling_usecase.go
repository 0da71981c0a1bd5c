package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qrave1/MentorCall/internal/application/constant"
	"github.com/qrave1/MentorCall/internal/domain/apperr"
	"github.com/qrave1/MentorCall/internal/domain/events"
	"github.com/qrave1/MentorCall/internal/domain/models"
	"github.com/qrave1/MentorCall/internal/domain/runtime"
	"github.com/qrave1/MentorCall/internal/infra/adapters/memory"
	"github.com/qrave1/MentorCall/internal/infra/adapters/postgres/repository"
)

// SignalingUsecase - реле комнаты сессии: зал ожидания, согласование соединения,
// общий редактор и досрочное завершение. Ошибки возвращаются вызывающему и уходят только отправителю.
type SignalingUsecase interface {
	HandleJoinSessionRoom(ctx context.Context, userID uuid.UUID, ev events.JoinSessionRoomEvent) error
	HandleAskToJoin(ctx context.Context, userID uuid.UUID, ev events.AskToJoinEvent) error
	HandleAcceptJoin(ctx context.Context, userID uuid.UUID, ev events.SessionEvent) error

	HandleSignal(ctx context.Context, userID uuid.UUID, ev events.SignalEvent) error
	// HandleEditorEvent пересылает code-change и editor-toggle без изменений
	HandleEditorEvent(ctx context.Context, userID uuid.UUID, eventType, sessionID string, raw json.RawMessage) error

	HandleEarlyEndRequest(ctx context.Context, userID uuid.UUID, ev events.EarlyEndRequestEvent) error
	HandleAcceptEarlyEnd(ctx context.Context, userID uuid.UUID, ev events.SessionEvent) error
	HandleRejectEarlyEnd(ctx context.Context, userID uuid.UUID, ev events.SessionEvent) error
	HandleSessionEnded(ctx context.Context, userID uuid.UUID, ev events.SessionEvent) error

	HandleSendMessage(ctx context.Context, userID uuid.UUID, ev events.SendMessageEvent) error
	HandlePing(ctx context.Context, userID uuid.UUID)
	HandleLeave(ctx context.Context, userID uuid.UUID) error
}

type sessionCompleter interface {
	Complete(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error)
}

type chatSender interface {
	Send(ctx context.Context, from, to uuid.UUID, text string) (*models.ChatMessage, error)
}

type signalingUsecase struct {
	log      *zap.Logger
	now      func() time.Time
	location *time.Location

	sessionRepo repository.SessionRepository
	roomRepo    memory.SessionRoomRepository
	wsRepo      memory.WebsocketConnectionRepository

	completer sessionCompleter
	chat      chatSender
}

func NewSignalingUsecase(
	log *zap.Logger,
	sessionRepo repository.SessionRepository,
	roomRepo memory.SessionRoomRepository,
	wsRepo memory.WebsocketConnectionRepository,
	completer sessionCompleter,
	chat chatSender,
) SignalingUsecase {
	return &signalingUsecase{
		log:         log,
		now:         time.Now,
		location:    time.Local,
		sessionRepo: sessionRepo,
		roomRepo:    roomRepo,
		wsRepo:      wsRepo,
		completer:   completer,
		chat:        chat,
	}
}

func (s *signalingUsecase) HandleJoinSessionRoom(ctx context.Context, userID uuid.UUID, ev events.JoinSessionRoomEvent) error {
	sessionID, err := parseSessionID(ev.SessionID)
	if err != nil {
		return err
	}

	if ev.UserID != "" && ev.UserID != userID.String() {
		return fmt.Errorf("user id does not match token: %w", apperr.ErrForbidden)
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	// Роль берется из записи сессии, заявленная клиентом только сверяется
	me, ok := session.Participant(userID)
	if !ok {
		return fmt.Errorf("not a participant of the session: %w", apperr.ErrForbidden)
	}

	if ev.Role != "" && models.Role(ev.Role) != me.Role {
		return fmt.Errorf("claimed role %q does not match: %w", ev.Role, apperr.ErrForbidden)
	}

	if session.Status != models.SessionStatusConfirmed {
		return fmt.Errorf("session is %s: %w", session.Status, apperr.ErrConflict)
	}

	start, err := session.ScheduledStart(s.location)
	if err != nil {
		return fmt.Errorf("session start: %w", err)
	}

	room := s.roomRepo.Register(ctx, runtime.NewSignalingSession(session, start), me)
	other := room.Counterpart(me.Role)
	peerConnected := room.Connected(other.Role)

	s.send(userID, events.TypeRoomJoined, events.RoomJoinedEvent{
		SessionID:     sessionID.String(),
		Role:          string(me.Role),
		Phase:         string(room.Phase),
		PeerConnected: peerConnected,
		StartsAt:      start.Format(time.RFC3339),
	})

	if peerConnected {
		s.send(other.ID, events.TypePeerJoined, events.PeerEvent{SessionID: sessionID.String(), Role: string(me.Role)})
	}

	s.log.Info(
		"joined session room",
		zap.Stringer(constant.SessionID, sessionID),
		zap.Stringer(constant.UserID, userID),
		zap.String(constant.Role, string(me.Role)),
		zap.String(constant.Phase, string(room.Phase)),
	)

	return nil
}

func (s *signalingUsecase) HandleAskToJoin(ctx context.Context, userID uuid.UUID, ev events.AskToJoinEvent) error {
	delivered := false

	room, _, err := s.update(ctx, userID, ev.SessionID, func(room *runtime.SignalingSession, me models.ParticipantRef) error {
		if me.Role != models.RoleStudent {
			return fmt.Errorf("only the student asks to join: %w", apperr.ErrForbidden)
		}

		if room.Phase != runtime.PhaseWaitingForJoin && room.Phase != runtime.PhaseJoinRequested {
			return fmt.Errorf("ask to join in %s: %w", room.Phase, apperr.ErrInvalidState)
		}

		if s.now().Before(room.ScheduledStart) {
			return fmt.Errorf("session has not started yet: %w", apperr.ErrInvalidState)
		}

		// Разработчика нет в комнате - запрос некому доставить
		if !room.Connected(models.RoleDeveloper) || !s.wsRepo.IsConnected(room.Developer.ID) {
			return nil
		}

		room.Phase = runtime.PhaseJoinRequested
		room.StudentName = ev.StudentName
		delivered = true

		return nil
	})
	if err != nil {
		return err
	}

	if !delivered {
		s.log.Info(
			"join request dropped, developer is not in the room",
			zap.Stringer(constant.SessionID, room.SessionID),
			zap.Stringer(constant.UserID, userID),
		)

		return nil
	}

	s.send(room.Developer.ID, events.TypeJoinRequest, events.JoinRequestEvent{
		SessionID:   room.SessionID.String(),
		StudentName: room.StudentName,
	})

	return nil
}

func (s *signalingUsecase) HandleAcceptJoin(ctx context.Context, userID uuid.UUID, ev events.SessionEvent) error {
	room, _, err := s.update(ctx, userID, ev.SessionID, func(room *runtime.SignalingSession, me models.ParticipantRef) error {
		if me.Role != models.RoleDeveloper {
			return fmt.Errorf("only the developer accepts: %w", apperr.ErrForbidden)
		}

		if room.Phase != runtime.PhaseJoinRequested {
			return fmt.Errorf("accept join in %s: %w", room.Phase, apperr.ErrInvalidState)
		}

		room.Phase = runtime.PhaseInCall

		return nil
	})
	if err != nil {
		return err
	}

	s.send(room.Student.ID, events.TypeJoinAccepted, events.SessionEvent{SessionID: room.SessionID.String()})

	s.logPhase("call started", room)

	return nil
}

func (s *signalingUsecase) HandleSignal(ctx context.Context, userID uuid.UUID, ev events.SignalEvent) error {
	room, me, err := s.update(ctx, userID, ev.SessionID, requireInCall)
	if err != nil {
		return err
	}

	s.send(room.Counterpart(me.Role).ID, events.TypeSignal, events.SignalEvent{
		SessionID: room.SessionID.String(),
		Data:      ev.Data,
	})

	return nil
}

func (s *signalingUsecase) HandleEditorEvent(
	ctx context.Context,
	userID uuid.UUID,
	eventType, sessionID string,
	raw json.RawMessage,
) error {
	room, me, err := s.update(ctx, userID, sessionID, requireInCall)
	if err != nil {
		return err
	}

	s.wsRepo.Write(room.Counterpart(me.Role).ID, events.Message{Type: eventType, Data: raw})

	return nil
}

func (s *signalingUsecase) HandleEarlyEndRequest(ctx context.Context, userID uuid.UUID, ev events.EarlyEndRequestEvent) error {
	room, me, err := s.update(ctx, userID, ev.SessionID, func(room *runtime.SignalingSession, me models.ParticipantRef) error {
		if !room.InCall() {
			return fmt.Errorf("early end in %s: %w", room.Phase, apperr.ErrInvalidState)
		}

		if room.EarlyEndPending(me.Role) {
			return fmt.Errorf("early end already requested: %w", apperr.ErrInvalidState)
		}

		room.SetEarlyEndPending(me.Role, true)
		room.Phase = runtime.PhaseEarlyEndRequested

		return nil
	})
	if err != nil {
		return err
	}

	other := room.Counterpart(me.Role)

	s.send(other.ID, events.TypeEarlyEndRequest, events.EarlyEndRequestEvent{
		SessionID: room.SessionID.String(),
		From:      string(me.Role),
		To:        string(other.Role),
	})

	s.logPhase("early end requested", room)

	return nil
}

func (s *signalingUsecase) HandleAcceptEarlyEnd(ctx context.Context, userID uuid.UUID, ev events.SessionEvent) error {
	room, me, err := s.update(ctx, userID, ev.SessionID, func(room *runtime.SignalingSession, me models.ParticipantRef) error {
		other := room.Counterpart(me.Role)

		if room.Phase != runtime.PhaseEarlyEndRequested || !room.EarlyEndPending(other.Role) {
			return fmt.Errorf("no early end request to accept: %w", apperr.ErrInvalidState)
		}

		room.Phase = runtime.PhaseEnded

		return nil
	})
	if err != nil {
		return err
	}

	s.send(room.Counterpart(me.Role).ID, events.TypeEarlyEndAccepted, events.SessionEvent{SessionID: room.SessionID.String()})

	s.finish(ctx, userID, room)

	return nil
}

func (s *signalingUsecase) HandleRejectEarlyEnd(ctx context.Context, userID uuid.UUID, ev events.SessionEvent) error {
	room, me, err := s.update(ctx, userID, ev.SessionID, func(room *runtime.SignalingSession, me models.ParticipantRef) error {
		other := room.Counterpart(me.Role)

		if !room.EarlyEndPending(other.Role) {
			return fmt.Errorf("no early end request to reject: %w", apperr.ErrInvalidState)
		}

		room.SetEarlyEndPending(other.Role, false)

		if !room.AnyEarlyEndPending() {
			room.Phase = runtime.PhaseInCall
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.send(room.Counterpart(me.Role).ID, events.TypeEarlyEndRejected, events.SessionEvent{SessionID: room.SessionID.String()})

	s.logPhase("early end rejected", room)

	return nil
}

func (s *signalingUsecase) HandleSessionEnded(ctx context.Context, userID uuid.UUID, ev events.SessionEvent) error {
	room, me, err := s.update(ctx, userID, ev.SessionID, func(room *runtime.SignalingSession, me models.ParticipantRef) error {
		if !room.InCall() {
			return fmt.Errorf("end session in %s: %w", room.Phase, apperr.ErrInvalidState)
		}

		room.Phase = runtime.PhaseEnded

		return nil
	})
	if err != nil {
		return err
	}

	s.send(room.Counterpart(me.Role).ID, events.TypeSessionEnded, events.SessionEvent{SessionID: room.SessionID.String()})

	s.finish(ctx, userID, room)

	return nil
}

func (s *signalingUsecase) HandleSendMessage(ctx context.Context, userID uuid.UUID, ev events.SendMessageEvent) error {
	to, err := uuid.Parse(ev.ToUserID)
	if err != nil {
		return fmt.Errorf("parse recipient id: %w", apperr.ErrInvalidInput)
	}

	if _, err = s.chat.Send(ctx, userID, to, ev.Message); err != nil {
		return fmt.Errorf("send chat message: %w", err)
	}

	return nil
}

func (s *signalingUsecase) HandlePing(ctx context.Context, userID uuid.UUID) {
	s.wsRepo.Write(userID, events.Message{Type: events.TypePong})
}

// HandleLeave снимает пользователя со всех комнат. Оставшийся участник получает peer-left.
func (s *signalingUsecase) HandleLeave(ctx context.Context, userID uuid.UUID) error {
	var errs []error

	for _, sessionID := range s.roomRepo.RoomsOf(ctx, userID) {
		snapshot, ok := s.roomRepo.Lookup(ctx, sessionID)
		if !ok {
			continue
		}

		me, ok := snapshot.Participant(userID)
		if !ok {
			continue
		}

		room, removed, err := s.roomRepo.Unregister(ctx, sessionID, me)
		if err != nil {
			errs = append(errs, fmt.Errorf("unregister from %s: %w", sessionID, err))
			continue
		}

		s.log.Info(
			"left session room",
			zap.Stringer(constant.SessionID, sessionID),
			zap.Stringer(constant.UserID, userID),
			zap.Bool("room_closed", removed),
		)

		if removed {
			continue
		}

		other := room.Counterpart(me.Role)
		if room.Connected(other.Role) {
			s.send(other.ID, events.TypePeerLeft, events.PeerEvent{SessionID: sessionID.String(), Role: string(me.Role)})
		}
	}

	return errors.Join(errs...)
}

// update применяет fn к комнате от имени подключенного участника
func (s *signalingUsecase) update(
	ctx context.Context,
	userID uuid.UUID,
	rawSessionID string,
	fn func(room *runtime.SignalingSession, me models.ParticipantRef) error,
) (runtime.SignalingSession, models.ParticipantRef, error) {
	sessionID, err := parseSessionID(rawSessionID)
	if err != nil {
		return runtime.SignalingSession{}, models.ParticipantRef{}, err
	}

	var me models.ParticipantRef

	room, err := s.roomRepo.Update(ctx, sessionID, func(room *runtime.SignalingSession) error {
		ref, ok := room.Participant(userID)
		if !ok || !room.Connected(ref.Role) {
			return fmt.Errorf("join the session room first: %w", apperr.ErrForbidden)
		}

		me = ref

		return fn(room, ref)
	})
	if errors.Is(err, memory.ErrRoomNotFound) {
		return room, me, fmt.Errorf("session room is not open: %w", apperr.ErrInvalidState)
	}

	return room, me, err
}

// finish переводит сессию в completed после завершения звонка
func (s *signalingUsecase) finish(ctx context.Context, userID uuid.UUID, room runtime.SignalingSession) {
	s.logPhase("call ended", room)

	// завершивший участник может сразу закрыть сокет, отмена чтения не должна сорвать complete
	if _, err := s.completer.Complete(context.WithoutCancel(ctx), userID, room.SessionID); err != nil {
		s.log.Error(
			"complete session after call",
			zap.Error(err),
			zap.Stringer(constant.SessionID, room.SessionID),
		)
	}
}

func (s *signalingUsecase) send(userID uuid.UUID, eventType string, payload any) bool {
	msg, err := events.New(eventType, payload)
	if err != nil {
		s.log.Error("build event", zap.Error(err), zap.String(constant.Event, eventType))
		return false
	}

	return s.wsRepo.Write(userID, msg)
}

func (s *signalingUsecase) logPhase(msg string, room runtime.SignalingSession) {
	s.log.Info(
		msg,
		zap.Stringer(constant.SessionID, room.SessionID),
		zap.String(constant.Phase, string(room.Phase)),
	)
}

func requireInCall(room *runtime.SignalingSession, _ models.ParticipantRef) error {
	if !room.InCall() {
		return fmt.Errorf("call is not active (%s): %w", room.Phase, apperr.ErrInvalidState)
	}

	return nil
}

func parseSessionID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse session id: %w", apperr.ErrInvalidInput)
	}

	return id, nil
}
