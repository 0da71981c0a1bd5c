package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qrave1/MentorCall/internal/application/constant"
	"github.com/qrave1/MentorCall/internal/application/metric"
	"github.com/qrave1/MentorCall/internal/availability"
	"github.com/qrave1/MentorCall/internal/domain/apperr"
	"github.com/qrave1/MentorCall/internal/domain/events"
	"github.com/qrave1/MentorCall/internal/domain/input"
	"github.com/qrave1/MentorCall/internal/domain/models"
	"github.com/qrave1/MentorCall/internal/domain/output"
	"github.com/qrave1/MentorCall/internal/infra/adapters/memory"
	"github.com/qrave1/MentorCall/internal/infra/adapters/payment"
	"github.com/qrave1/MentorCall/internal/infra/adapters/postgres/repository"
	"github.com/qrave1/MentorCall/internal/infra/adapters/storage"
)

type SessionUsecase interface {
	AvailableSlots(ctx context.Context, developerID uuid.UUID, date time.Time, hours int) (*output.AvailableSlots, error)
	CreateSession(ctx context.Context, in *input.CreateSessionInput) (*output.CreatedSession, error)
	ConfirmPayment(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error)

	// Complete идемпотентен: повторный вызов для завершенной сессии просто возвращает ее
	Complete(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error)
	Cancel(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error)
	SaveRecording(ctx context.Context, userID, sessionID uuid.UUID, filename string, r io.Reader) (*models.Session, error)

	GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error)
	ListSessions(ctx context.Context, userID uuid.UUID) ([]*models.Session, error)
}

type sessionUsecase struct {
	log      *zap.Logger
	now      func() time.Time
	location *time.Location

	sessionRepo   repository.SessionRepository
	developerRepo repository.DeveloperRepository
	gateway       payment.Gateway
	recordings    storage.RecordingStore
	wsRepo        memory.WebsocketConnectionRepository
}

func NewSessionUsecase(
	log *zap.Logger,
	sessionRepo repository.SessionRepository,
	developerRepo repository.DeveloperRepository,
	gateway payment.Gateway,
	recordings storage.RecordingStore,
	wsRepo memory.WebsocketConnectionRepository,
) SessionUsecase {
	return &sessionUsecase{
		log:           log,
		now:           time.Now,
		location:      time.Local,
		sessionRepo:   sessionRepo,
		developerRepo: developerRepo,
		gateway:       gateway,
		recordings:    recordings,
		wsRepo:        wsRepo,
	}
}

func (uc *sessionUsecase) AvailableSlots(
	ctx context.Context,
	developerID uuid.UUID,
	date time.Time,
	hours int,
) (*output.AvailableSlots, error) {
	profile, err := uc.developerRepo.GetProfile(ctx, developerID)
	if err != nil {
		return nil, fmt.Errorf("get developer profile: %w", err)
	}

	window, err := availability.WindowOf(profile)
	if err != nil {
		return nil, fmt.Errorf("developer working hours: %w", err)
	}

	booked, err := uc.sessionRepo.BookedOn(ctx, developerID, date)
	if err != nil {
		return nil, fmt.Errorf("get booked sessions: %w", err)
	}

	slots, err := availability.ComputeSlots(window, booked, hours)
	if err != nil {
		return nil, fmt.Errorf("compute slots: %w", err)
	}

	labels := make([]string, 0, len(slots))
	for _, slot := range slots {
		labels = append(labels, slot.String())
	}

	return &output.AvailableSlots{
		WorkingHours:   profile.WorkingHours(),
		AvailableSlots: labels,
		HourlyRate:     profile.HourlyRate,
	}, nil
}

func (uc *sessionUsecase) CreateSession(ctx context.Context, in *input.CreateSessionInput) (*output.CreatedSession, error) {
	startHour, err := uc.validateCreate(in)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	session := &models.Session{
		ID:          uuid.New(),
		DeveloperID: in.DeveloperID,
		StudentID:   in.StudentID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Hours:       in.Hours,
		Date:        in.Date,
		StartTime:   models.FormatClock(startHour),
		EndTime:     availability.EndTime(startHour, in.Hours),
		Amount:      in.Amount,
		Status:      models.SessionStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = uc.sessionRepo.Book(ctx, session, func(profile *models.DeveloperProfile, booked []models.BookedSession) error {
		window, err := availability.WindowOf(profile)
		if err != nil {
			return fmt.Errorf("developer working hours: %w", err)
		}

		ok, err := availability.Available(window, booked, in.Hours, startHour)
		if err != nil {
			return err
		}

		if !ok {
			return fmt.Errorf("slot %s is not available: %w", session.StartTime, apperr.ErrConflict)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("book session: %w", err)
	}

	intent, err := uc.gateway.CreateIntent(ctx, session.ID, session.Amount)
	if err != nil {
		// без платежа слот не должен висеть занятым
		if _, cancelErr := uc.sessionRepo.UpdateStatus(
			ctx, session.ID, []models.SessionStatus{models.SessionStatusPending}, models.SessionStatusCancelled,
		); cancelErr != nil {
			uc.log.Error("cancel unpaid session", zap.Error(cancelErr), zap.Stringer(constant.SessionID, session.ID))
		}

		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	if err = uc.sessionRepo.SetPaymentIntent(ctx, session.ID, intent.ID); err != nil {
		return nil, fmt.Errorf("save payment intent: %w", err)
	}

	session.PaymentIntentID = &intent.ID

	uc.log.Info(
		"session booked",
		zap.Stringer(constant.SessionID, session.ID),
		zap.Stringer(constant.UserID, in.StudentID),
		zap.String("date", session.Date.Format(models.DateLayout)),
		zap.String("start_time", session.StartTime),
	)

	return &output.CreatedSession{Session: session, ClientSecret: intent.ClientSecret}, nil
}

func (uc *sessionUsecase) validateCreate(in *input.CreateSessionInput) (int, error) {
	if strings.TrimSpace(in.Title) == "" {
		return 0, fmt.Errorf("title is required: %w", apperr.ErrInvalidInput)
	}

	if in.DeveloperID == uuid.Nil || in.DeveloperID == in.StudentID {
		return 0, fmt.Errorf("invalid developer: %w", apperr.ErrInvalidInput)
	}

	if in.Hours < 1 || in.Hours > 24 {
		return 0, fmt.Errorf("hours %d: %w", in.Hours, apperr.ErrInvalidInput)
	}

	if in.Amount <= 0 {
		return 0, fmt.Errorf("amount must be positive: %w", apperr.ErrInvalidInput)
	}

	startHour, minute, err := models.ParseClock(in.StartTime)
	if err != nil || minute != 0 {
		return 0, fmt.Errorf("start time %q: %w", in.StartTime, apperr.ErrInvalidInput)
	}

	// дата сессии хранится без зоны, сегодняшний день берем в зоне расписания
	y, m, d := uc.now().In(uc.location).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if in.Date.Before(today) {
		return 0, fmt.Errorf("date is in the past: %w", apperr.ErrInvalidInput)
	}

	return startHour, nil
}

func (uc *sessionUsecase) ConfirmPayment(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error) {
	session, err := uc.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if session.StudentID != userID {
		return nil, fmt.Errorf("only the student pays for a session: %w", apperr.ErrForbidden)
	}

	if session.Status != models.SessionStatusPending || session.PaymentIntentID == nil {
		return nil, fmt.Errorf("session is %s: %w", session.Status, apperr.ErrConflict)
	}

	ok, err := uc.gateway.IsAuthorized(ctx, *session.PaymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("check payment: %w", err)
	}

	if !ok {
		return nil, apperr.ErrPayment
	}

	return uc.sessionRepo.UpdateStatus(
		ctx, sessionID, []models.SessionStatus{models.SessionStatusPending}, models.SessionStatusConfirmed,
	)
}

func (uc *sessionUsecase) Complete(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error) {
	session, err := uc.participantSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Status == models.SessionStatusCompleted {
		return session, nil
	}

	completed, err := uc.sessionRepo.UpdateStatus(
		ctx, sessionID, []models.SessionStatus{models.SessionStatusConfirmed}, models.SessionStatusCompleted,
	)
	if err != nil {
		if !errors.Is(err, apperr.ErrConflict) {
			return nil, err
		}

		// второй участник мог успеть завершить сессию раньше
		current, getErr := uc.sessionRepo.GetByID(ctx, sessionID)
		if getErr == nil && current.Status == models.SessionStatusCompleted {
			return current, nil
		}

		return nil, fmt.Errorf("complete %s session: %w", session.Status, err)
	}

	uc.notifyParticipants(completed, events.TypeSessionCompleted, events.SessionCompletedEvent{
		SessionID: completed.ID.String(),
		Status:    string(completed.Status),
	})

	uc.log.Info("session completed", zap.Stringer(constant.SessionID, sessionID), zap.Stringer(constant.UserID, userID))

	return completed, nil
}

func (uc *sessionUsecase) Cancel(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error) {
	if _, err := uc.participantSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	return uc.sessionRepo.UpdateStatus(
		ctx,
		sessionID,
		[]models.SessionStatus{models.SessionStatusPending, models.SessionStatusConfirmed},
		models.SessionStatusCancelled,
	)
}

func (uc *sessionUsecase) SaveRecording(
	ctx context.Context,
	userID, sessionID uuid.UUID,
	filename string,
	r io.Reader,
) (*models.Session, error) {
	session, err := uc.participantSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Status != models.SessionStatusConfirmed && session.Status != models.SessionStatusCompleted {
		return nil, fmt.Errorf("cannot attach recording to %s session: %w", session.Status, apperr.ErrConflict)
	}

	path, err := uc.recordings.Save(ctx, sessionID, filename, r)
	if err != nil {
		metric.RecordRecordingUpload(false)
		return nil, fmt.Errorf("store recording: %w", err)
	}

	if err = uc.sessionRepo.SetRecordingPath(ctx, sessionID, path); err != nil {
		metric.RecordRecordingUpload(false)
		return nil, fmt.Errorf("save recording path: %w", err)
	}

	metric.RecordRecordingUpload(true)

	uc.log.Info("recording saved", zap.Stringer(constant.SessionID, sessionID), zap.String(constant.Path, path))

	session.RecordingPath = &path

	return session, nil
}

func (uc *sessionUsecase) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error) {
	return uc.participantSession(ctx, userID, sessionID)
}

func (uc *sessionUsecase) ListSessions(ctx context.Context, userID uuid.UUID) ([]*models.Session, error) {
	return uc.sessionRepo.ListByParticipant(ctx, userID)
}

func (uc *sessionUsecase) participantSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error) {
	session, err := uc.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if _, ok := session.Participant(userID); !ok {
		return nil, fmt.Errorf("not a participant of the session: %w", apperr.ErrForbidden)
	}

	return session, nil
}

func (uc *sessionUsecase) notifyParticipants(session *models.Session, eventType string, payload any) {
	msg, err := events.New(eventType, payload)
	if err != nil {
		uc.log.Error("build session event", zap.Error(err), zap.String(constant.Event, eventType))
		return
	}

	uc.wsRepo.Write(session.DeveloperID, msg)
	uc.wsRepo.Write(session.StudentID, msg)
}
