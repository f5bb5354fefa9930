package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRange           = errors.New("end time must be after start time")
	ErrOverlapConflict        = errors.New("booking overlaps an active booking")
	ErrForbidden              = errors.New("forbidden")
	ErrNotFound               = errors.New("not found")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrConstraintViolation    = errors.New("storage constraint violation")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrItemUnavailable        = errors.New("item is not available for booking")
	ErrInvalidInput           = errors.New("invalid input")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrRateLimited            = errors.New("rate limit exceeded")
)

// OverlapError lists every active booking the proposed range intersects.
type OverlapError struct {
	ConflictingIDs []int64
}

func (e *OverlapError) Error() string {
	if len(e.ConflictingIDs) == 0 {
		return ErrOverlapConflict.Error()
	}
	ids := make([]string, len(e.ConflictingIDs))
	for i, id := range e.ConflictingIDs {
		ids[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("%s: %s", ErrOverlapConflict.Error(), strings.Join(ids, ", "))
}

func (e *OverlapError) Is(target error) bool {
	return target == ErrOverlapConflict
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition.Error(), e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// InvalidInput wraps ErrInvalidInput with a field-level reason.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
