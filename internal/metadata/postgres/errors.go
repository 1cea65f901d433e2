package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// isUniqueViolation classifies err as a unique-constraint failure across
// both backends: Postgres reports it via pgconn.PgError code 23505,
// modernc.org/sqlite surfaces it as a driver error whose text contains
// "UNIQUE constraint failed" — mirrors the teacher's
// organization.postgresql.go pgError-code switch, extended to the second
// backend this spec requires.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyViolation classifies err as a foreign-key failure.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}

	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
