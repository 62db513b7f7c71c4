package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/n0P7xJ/MyReactNative/internal/repository"
)

const uniqueViolation = "23505"

// mapErr turns unique-constraint violations into repository.ErrDuplicate.
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrDuplicate
	}
	return err
}
