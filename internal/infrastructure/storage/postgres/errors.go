package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"stokku/internal/core/apperror"
)

// SQLSTATE codes the repositories care about.
const (
	pgLockNotAvailable = "55P03" // lock_timeout expired
	pgUniqueViolation  = "23505"
	pgSerialization    = "40001"
	pgDeadlockDetected = "40P01"
)

// TranslateError maps driver errors to AppError. entity/id name the row
// being touched for the error details.
func TranslateError(err error, entity string, id any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NewNotFound(entity, id)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgSerialization, pgDeadlockDetected:
			return apperror.NewContention(entity, id).WithCause(err)
		case pgUniqueViolation:
			return apperror.NewConflict(entity + " already exists").WithCause(err)
		}
	}
	return apperror.NewInternal(err)
}
