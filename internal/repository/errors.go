package repository

import (
	"database/sql"
	"errors"
	"strings"
)

// isUniqueViolation matches both pgdriver (SQLSTATE 23505) and modernc
// sqlite ("UNIQUE constraint failed") duplicate key errors.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// isForeignKeyViolation matches pgdriver (SQLSTATE 23503) and modernc sqlite
// ("FOREIGN KEY constraint failed") referential errors, which RESTRICT
// deletes surface as.
func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "23503") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "violates foreign key constraint")
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
