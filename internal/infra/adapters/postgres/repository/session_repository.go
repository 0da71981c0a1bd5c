package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/qrave1/MentorCall/internal/domain/apperr"
	"github.com/qrave1/MentorCall/internal/domain/models"
)

// BookingValidator проверяет слот внутри транзакции бронирования
type BookingValidator func(profile *models.DeveloperProfile, booked []models.BookedSession) error

type SessionRepository interface {
	// Book блокирует профиль разработчика, перепроверяет слот через validate и создает сессию
	Book(ctx context.Context, session *models.Session, validate BookingValidator) error

	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*models.Session, error)
	BookedOn(ctx context.Context, developerID uuid.UUID, date time.Time) ([]models.BookedSession, error)

	// UpdateStatus меняет статус, только если текущий входит в from
	UpdateStatus(ctx context.Context, id uuid.UUID, from []models.SessionStatus, to models.SessionStatus) (*models.Session, error)
	SetPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error
	SetRecordingPath(ctx context.Context, id uuid.UUID, path string) error
}

type sessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

const sessionColumns = `
	id, developer_id, student_id, title, description, hours, date, start_time, end_time,
	amount, status, payment_intent_id, recording_path, created_at, updated_at
`

const bookedQuery = `
	SELECT start_time, end_time
	FROM sessions
	WHERE developer_id = $1 AND date = $2 AND status IN ('pending', 'confirmed')
`

func (r *sessionRepo) Book(ctx context.Context, session *models.Session, validate BookingValidator) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Блокировка профиля сериализует бронирования одного разработчика
	var profile models.DeveloperProfile

	err = tx.GetContext(
		ctx,
		&profile,
		"SELECT user_id, working_from, working_to, hourly_rate, updated_at FROM developer_profiles WHERE user_id = $1 FOR UPDATE",
		session.DeveloperID,
	)
	if err != nil {
		return wrapErr("lock developer profile", err)
	}

	var booked []models.BookedSession

	if err = tx.SelectContext(ctx, &booked, bookedQuery, session.DeveloperID, session.Date.Format(models.DateLayout)); err != nil {
		return wrapErr("select booked sessions", err)
	}

	if err = validate(&profile, booked); err != nil {
		return err
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		session.ID,
		session.DeveloperID,
		session.StudentID,
		session.Title,
		session.Description,
		session.Hours,
		session.Date.Format(models.DateLayout),
		session.StartTime,
		session.EndTime,
		session.Amount,
		session.Status,
		session.PaymentIntentID,
		session.RecordingPath,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return wrapErr("insert session", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var session models.Session

	if err := r.db.GetContext(ctx, &session, "SELECT "+sessionColumns+" FROM sessions WHERE id = $1", id); err != nil {
		return nil, wrapErr("get session by id", err)
	}

	return &session, nil
}

func (r *sessionRepo) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*models.Session, error) {
	var sessions []*models.Session

	query := "SELECT " + sessionColumns + `
		FROM sessions
		WHERE developer_id = $1 OR student_id = $1
		ORDER BY date DESC, start_time DESC
	`

	if err := r.db.SelectContext(ctx, &sessions, query, userID); err != nil {
		return nil, wrapErr("list sessions", err)
	}

	return sessions, nil
}

func (r *sessionRepo) BookedOn(ctx context.Context, developerID uuid.UUID, date time.Time) ([]models.BookedSession, error) {
	var booked []models.BookedSession

	if err := r.db.SelectContext(ctx, &booked, bookedQuery, developerID, date.Format(models.DateLayout)); err != nil {
		return nil, wrapErr("select booked sessions", err)
	}

	return booked, nil
}

func (r *sessionRepo) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	from []models.SessionStatus,
	to models.SessionStatus,
) (*models.Session, error) {
	query, args, err := sqlx.In(
		"UPDATE sessions SET status = ?, updated_at = now() WHERE id = ? AND status IN (?) RETURNING "+sessionColumns,
		to,
		id,
		from,
	)
	if err != nil {
		return nil, fmt.Errorf("build update status query: %w", err)
	}

	var session models.Session

	if err = r.db.GetContext(ctx, &session, r.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// сессии нет или статус уже другой
			return nil, fmt.Errorf("update session status to %s: %w", to, apperr.ErrConflict)
		}

		return nil, wrapErr("update session status", err)
	}

	return &session, nil
}

func (r *sessionRepo) SetPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE sessions SET payment_intent_id = $1, updated_at = now() WHERE id = $2", intentID, id)

	return wrapErr("set payment intent", err)
}

func (r *sessionRepo) SetRecordingPath(ctx context.Context, id uuid.UUID, path string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE sessions SET recording_path = $1, updated_at = now() WHERE id = $2", path, id)

	return wrapErr("set recording path", err)
}
