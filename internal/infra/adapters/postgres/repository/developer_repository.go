package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/qrave1/MentorCall/internal/domain/models"
)

type DeveloperRepository interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.DeveloperProfile, error)
	UpsertProfile(ctx context.Context, profile *models.DeveloperProfile) error
}

type developerRepo struct {
	db *sqlx.DB
}

func NewDeveloperRepo(db *sqlx.DB) DeveloperRepository {
	return &developerRepo{db: db}
}

func (r *developerRepo) GetProfile(ctx context.Context, userID uuid.UUID) (*models.DeveloperProfile, error) {
	var profile models.DeveloperProfile

	query := "SELECT user_id, working_from, working_to, hourly_rate, updated_at FROM developer_profiles WHERE user_id = $1"

	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		return nil, wrapErr("get developer profile", err)
	}

	return &profile, nil
}

func (r *developerRepo) UpsertProfile(ctx context.Context, profile *models.DeveloperProfile) error {
	query := `
		INSERT INTO developer_profiles (user_id, working_from, working_to, hourly_rate, updated_at)
		VALUES (:user_id, :working_from, :working_to, :hourly_rate, :updated_at)
		ON CONFLICT (user_id) DO UPDATE
		SET working_from = EXCLUDED.working_from,
		    working_to   = EXCLUDED.working_to,
		    hourly_rate  = EXCLUDED.hourly_rate,
		    updated_at   = EXCLUDED.updated_at
	`

	_, err := r.db.NamedExecContext(ctx, query, profile)

	return wrapErr("upsert developer profile", err)
}
