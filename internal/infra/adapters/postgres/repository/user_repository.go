package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/qrave1/MentorCall/internal/domain/models"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

type userRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, display_name, password, role, created_at, updated_at)
		VALUES (:id, :username, :display_name, :password, :role, :created_at, :updated_at)
	`

	res, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return wrapErr("create user", err)
	}

	if aff, err := res.RowsAffected(); aff == 0 || err != nil {
		return fmt.Errorf("create user no rows affected: %w", err)
	}

	return nil
}

func (r *userRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User

	query := "SELECT id, username, display_name, password, role, created_at, updated_at FROM users WHERE id = $1"

	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, wrapErr("get user by id", err)
	}

	return &user, nil
}

func (r *userRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User

	query := "SELECT id, username, display_name, password, role, created_at, updated_at FROM users WHERE username = $1"

	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		return nil, wrapErr("get user by username", err)
	}

	return &user, nil
}
