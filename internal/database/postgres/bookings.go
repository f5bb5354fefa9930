package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"renit/internal/domain"
	"renit/internal/models"
)

const bookingColumns = `id, item_id, renter_id, start_time, end_time, status,
	total_price_cents, checkout_session_id, created_at, updated_at, version`

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b     models.Booking
		total sql.NullInt64
	)
	err := row.Scan(
		&b.ID, &b.ItemID, &b.RenterID, &b.StartTime, &b.EndTime, &b.Status,
		&total, &b.CheckoutSessionID, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	b.StartTime = b.StartTime.UTC()
	b.EndTime = b.EndTime.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	if total.Valid {
		b.TotalPriceCents = &total.Int64
	}
	return &b, nil
}

func (s *Store) queryBookings(ctx context.Context, op, query string, args ...any) ([]*models.Booking, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return bookings, nil
}

func (s *Store) FindActiveBookings(ctx context.Context, itemID, excludeID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE item_id = $1 AND id <> $2 AND status = ANY($3)
              ORDER BY start_time ASC, id ASC`
	return s.queryBookings(ctx, "find active bookings", query, itemID, excludeID, activeStatuses)
}

func (s *Store) InsertBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (
                item_id, renter_id, start_time, end_time, status,
                total_price_cents, checkout_session_id, created_at, updated_at, version
              ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, 1) RETURNING id`
	ts := now()
	var total sql.NullInt64
	if booking.TotalPriceCents != nil {
		total = sql.NullInt64{Int64: *booking.TotalPriceCents, Valid: true}
	}
	err := s.db.QueryRowContext(ctx, query,
		booking.ItemID,
		booking.RenterID,
		booking.StartTime.UTC(),
		booking.EndTime.UTC(),
		booking.Status,
		total,
		booking.CheckoutSessionID,
		ts,
	).Scan(&booking.ID)
	if err != nil {
		return mapError("insert booking", err)
	}
	booking.CreatedAt = ts
	booking.UpdatedAt = ts
	booking.Version = 1
	return nil
}

func (s *Store) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	query := `UPDATE bookings
              SET start_time = $1, end_time = $2, status = $3, total_price_cents = $4,
                  checkout_session_id = $5, updated_at = $6, version = version + 1
              WHERE id = $7 AND version = $8`
	ts := now()
	var total sql.NullInt64
	if booking.TotalPriceCents != nil {
		total = sql.NullInt64{Int64: *booking.TotalPriceCents, Valid: true}
	}
	result, err := s.db.ExecContext(ctx, query,
		booking.StartTime.UTC(),
		booking.EndTime.UTC(),
		booking.Status,
		total,
		booking.CheckoutSessionID,
		ts,
		booking.ID,
		booking.Version,
	)
	if err != nil {
		return mapError("update booking", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		if _, err := s.GetBooking(ctx, booking.ID); err != nil {
			return err
		}
		return domain.ErrConcurrentModification
	}
	booking.Version++
	booking.UpdatedAt = ts
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking %d: %w", id, domain.ErrNotFound)
		}
		return nil, mapError("get booking", err)
	}
	return b, nil
}

func (s *Store) ListBookingsByRenter(ctx context.Context, renterID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE renter_id = $1 ORDER BY start_time DESC, id DESC`
	return s.queryBookings(ctx, "list renter bookings", query, renterID)
}

func (s *Store) ListBookingsByItem(ctx context.Context, itemID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE item_id = $1 ORDER BY start_time ASC, id ASC`
	return s.queryBookings(ctx, "list item bookings", query, itemID)
}

func (s *Store) FindFinishedBookings(ctx context.Context, at time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE status = $1 AND end_time <= $2 ORDER BY end_time ASC`
	return s.queryBookings(ctx, "find finished bookings", query, models.StatusConfirmed, at.UTC())
}

func (s *Store) FindStalePendingBookings(ctx context.Context, createdBefore time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE status = $1 AND created_at < $2 ORDER BY created_at ASC`
	return s.queryBookings(ctx, "find stale pending bookings", query, models.StatusPending, createdBefore.UTC())
}
