// Package pricing computes booking totals from an item's nightly rate.
package pricing

import (
	"fmt"
	"math"
	"time"

	"renit/internal/domain"
)

const day = 24 * time.Hour

// Days returns the number of billable days in [start, end): partial days round
// up and anything shorter than a day bills as one.
func Days(start, end time.Time) (int64, error) {
	if !end.After(start) {
		return 0, domain.ErrInvalidRange
	}
	span := end.Sub(start)
	days := int64(span / day)
	if span%day != 0 {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days, nil
}

// Total returns rateCents multiplied by the billable days.
func Total(rateCents int64, start, end time.Time) (int64, error) {
	if rateCents < 0 {
		return 0, domain.InvalidInput("nightly rate must not be negative")
	}
	days, err := Days(start, end)
	if err != nil {
		return 0, err
	}
	if rateCents > 0 && days > math.MaxInt64/rateCents {
		return 0, domain.InvalidInput("total price overflows: %d cents x %d days", rateCents, days)
	}
	return rateCents * days, nil
}

// Resolve keeps a caller-supplied price and only computes one when absent.
func Resolve(supplied *int64, rateCents int64, start, end time.Time) (*int64, error) {
	if supplied != nil {
		if *supplied < 0 {
			return nil, domain.InvalidInput("total price must not be negative")
		}
		v := *supplied
		return &v, nil
	}
	total, err := Total(rateCents, start, end)
	if err != nil {
		return nil, fmt.Errorf("price booking: %w", err)
	}
	return &total, nil
}
