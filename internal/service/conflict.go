package service

import (
	"context"
	"fmt"
	"time"

	"renit/internal/domain"
)

// ConflictChecker tests a proposed range against the item's active bookings
// using half-open [start, end) semantics.
type ConflictChecker struct {
	bookings domain.BookingStore
}

func NewConflictChecker(bookings domain.BookingStore) *ConflictChecker {
	return &ConflictChecker{bookings: bookings}
}

// Check returns nil when the range is clear, domain.ErrInvalidRange before any
// store query when end is not after start, and *domain.OverlapError listing
// every intersecting booking otherwise.
func (c *ConflictChecker) Check(ctx context.Context, itemID int64, start, end time.Time, excludeID int64) error {
	if !end.After(start) {
		return domain.ErrInvalidRange
	}

	ids, err := c.Conflicts(ctx, itemID, start, end, excludeID)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		return &domain.OverlapError{ConflictingIDs: ids}
	}
	return nil
}

// Conflicts lists the ids of active bookings intersecting [start, end).
func (c *ConflictChecker) Conflicts(ctx context.Context, itemID int64, start, end time.Time, excludeID int64) ([]int64, error) {
	active, err := c.bookings.FindActiveBookings(ctx, itemID, excludeID)
	if err != nil {
		return nil, fmt.Errorf("find active bookings: %w", err)
	}

	var ids []int64
	for _, b := range active {
		if b.ID != excludeID && b.Overlaps(start, end) {
			ids = append(ids, b.ID)
		}
	}
	return ids, nil
}
