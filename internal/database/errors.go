package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"renit/internal/domain"

	"github.com/mattn/go-sqlite3"
)

// mapError translates driver errors into the domain taxonomy, keeping the
// original error in the chain for logging.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		switch {
		case strings.Contains(sqliteErr.Error(), overlapAbortMessage):
			return fmt.Errorf("%s: %w", op, domain.ErrConstraintViolation)
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique:
			return fmt.Errorf("%s: %w: already exists", op, domain.ErrInvalidInput)
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%s: referenced record: %w", op, domain.ErrNotFound)
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck:
			return fmt.Errorf("%s: %w: %v", op, domain.ErrInvalidInput, err)
		}
	}

	return fmt.Errorf("failed to %s: %w", op, err)
}
