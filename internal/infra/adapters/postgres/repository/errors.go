package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/qrave1/MentorCall/internal/domain/apperr"
)

const uniqueViolation = "23505"

// wrapErr приводит ошибки драйвера к доменным
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w: %s", op, apperr.ErrConflict, pgErr.ConstraintName)
	}

	return fmt.Errorf("%s: %w", op, err)
}
