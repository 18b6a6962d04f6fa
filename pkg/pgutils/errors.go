// Package pgutils classifies database constraint violations.
package pgutils

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	// Class 23: Integrity Constraint Violation
	CodeUniqueViolation = "23505"
	CodeCheckViolation  = "23514"
)

// SQLite reports constraint failures by message only.
const (
	sqliteUniqueFailed     = "UNIQUE constraint failed"
	sqlitePrimaryKeyFailed = "PRIMARY KEY constraint failed"
	sqliteCheckFailed      = "CHECK constraint failed"
)

// IsUniqueViolation checks if the error is a unique constraint violation (Postgres 23505 or SQLite UNIQUE/PRIMARY KEY).
func IsUniqueViolation(err error) bool {
	return containsErrorCode(err, CodeUniqueViolation) ||
		containsMessage(err, sqliteUniqueFailed) ||
		containsMessage(err, sqlitePrimaryKeyFailed)
}

// IsCheckViolation checks if the error is a check constraint violation (23514).
func IsCheckViolation(err error) bool {
	return containsErrorCode(err, CodeCheckViolation) || containsMessage(err, sqliteCheckFailed)
}

// ViolatesConstraint reports whether err names the given constraint. Postgres errors carry the
// constraint name; SQLite messages list the columns instead ("UNIQUE constraint failed: relationship.source, relationship.target"),
// so columns are matched as a fallback.
func ViolatesConstraint(err error, constraint string, columns ...string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName == constraint
	}
	msg := err.Error()
	if strings.Contains(msg, constraint) {
		return true
	}
	if len(columns) == 0 {
		return false
	}
	for _, col := range columns {
		if !strings.Contains(msg, col) {
			return false
		}
	}
	return true
}

// containsErrorCode checks for a SQLSTATE on a pgconn.PgError, or in the message for other drivers.
func containsErrorCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	errStr := err.Error()
	return len(errStr) > 0 && (strings.Contains(errStr, code) || strings.Contains(errStr, "SQLSTATE "+code))
}

func containsMessage(err error, fragment string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), fragment)
}
