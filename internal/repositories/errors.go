package repositories

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates the requested record, or a record it references, does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the write would duplicate a unique key such as a user name or email.
	ErrConflict = errors.New("record conflict")
)

const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isPositionRace reports whether err came from another append taking the same history position.
func isPositionRace(err error) bool {
	switch pgCode(err) {
	case pgUniqueViolation, pgSerializationFailure:
		return true
	}
	return false
}
