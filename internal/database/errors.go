package database

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err comes from a unique constraint.
// When constraint is non-empty the violated constraint name must match too.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != uniqueViolation {
			return false
		}
		return constraint == "" || pgErr.ConstraintName == constraint
	}

	// Drivers that don't expose PgError still report the SQLSTATE text.
	msg := err.Error()
	if !strings.Contains(msg, "duplicate key") && !strings.Contains(msg, uniqueViolation) {
		return false
	}
	return constraint == "" || strings.Contains(msg, constraint)
}
