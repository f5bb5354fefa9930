package models

import "time"

type Booking struct {
	ID                int64     `json:"id"`
	ItemID            int64     `json:"item_id"`
	RenterID          int64     `json:"renter_id"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	Status            string    `json:"status"` // pending, confirmed, completed, canceled
	TotalPriceCents   *int64    `json:"total_price_cents"`
	CheckoutSessionID string    `json:"checkout_session_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	Version           int64     `json:"version"`
}

var bookingTransitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCanceled},
	StatusConfirmed: {StatusCompleted, StatusCanceled},
	StatusCompleted: {},
	StatusCanceled:  {},
}

// IsActiveStatus reports whether a booking in this status holds the item.
func IsActiveStatus(status string) bool {
	return status == StatusPending || status == StatusConfirmed
}

// CanTransition reports whether the status graph allows from -> to.
func CanTransition(from, to string) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether no transition leaves the status.
func IsTerminalStatus(status string) bool {
	next, ok := bookingTransitions[status]
	return ok && len(next) == 0
}

func (b *Booking) IsActive() bool {
	return IsActiveStatus(b.Status)
}

// Overlaps applies half-open interval semantics: [s1,e1) and [s2,e2) overlap iff s1 < e2 && s2 < e1.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && start.Before(b.EndTime)
}

// BookingUpdate carries optional new times for a booking edit.
type BookingUpdate struct {
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}
