package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"renit/internal/domain"

	"github.com/lib/pq"
)

const (
	codeExclusionViolation = "23P01"
	codeUniqueViolation    = "23505"
	codeForeignKey         = "23503"
	codeCheckViolation     = "23514"
	codeSerialization      = "40001"
)

func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeExclusionViolation:
			return fmt.Errorf("%s: %w", op, domain.ErrConstraintViolation)
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w: already exists", op, domain.ErrInvalidInput)
		case codeForeignKey:
			return fmt.Errorf("%s: referenced record: %w", op, domain.ErrNotFound)
		case codeCheckViolation:
			return fmt.Errorf("%s: %w: %s", op, domain.ErrInvalidInput, pqErr.Message)
		case codeSerialization:
			return fmt.Errorf("%s: %w", op, domain.ErrConcurrentModification)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
