package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// Errors maps driver-level failures onto a domain's sentinel errors.
// Nil fields leave the matching failure unchanged.
type Errors struct {
	NotFound  error
	Duplicate error
	Invalid   error
}

// Map translates sql.ErrNoRows to NotFound, a PostgreSQL unique violation to
// Duplicate, and a check-constraint violation to Invalid. Anything else is
// returned unchanged.
func (m Errors) Map(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) && m.NotFound != nil {
		return m.NotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation && m.Duplicate != nil:
			return m.Duplicate
		case pgErr.Code == pgCheckViolation && m.Invalid != nil:
			return m.Invalid
		}
	}

	return err
}
