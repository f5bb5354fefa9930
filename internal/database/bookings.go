package database

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
		b                    models.Booking
		start, end           int64
		createdAt, updatedAt int64
		total                sql.NullInt64
	)
	err := row.Scan(
		&b.ID, &b.ItemID, &b.RenterID, &start, &end, &b.Status,
		&total, &b.CheckoutSessionID, &createdAt, &updatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	b.StartTime = fromUnix(start)
	b.EndTime = fromUnix(end)
	b.TotalPriceCents = fromNullInt64(total)
	b.CreatedAt = fromUnix(createdAt)
	b.UpdatedAt = fromUnix(updatedAt)
	return &b, nil
}

func (db *DB) queryBookings(ctx context.Context, op, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
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

// FindActiveBookings returns pending and confirmed bookings of the item, skipping excludeID.
func (db *DB) FindActiveBookings(ctx context.Context, itemID, excludeID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE item_id = ? AND id <> ? AND status IN (?, ?)
              ORDER BY start_time ASC, id ASC`
	return db.queryBookings(ctx, "find active bookings", query,
		itemID, excludeID, models.StatusPending, models.StatusConfirmed)
}

// InsertBooking stores a new booking. An overlapping active range fails with
// domain.ErrConstraintViolation and leaves no row behind.
func (db *DB) InsertBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (
                item_id, renter_id, start_time, end_time, status,
                total_price_cents, checkout_session_id, created_at, updated_at, version
              ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`
	now := time.Now().UTC().Truncate(time.Second)
	result, err := db.ExecContext(ctx, query,
		booking.ItemID,
		booking.RenterID,
		unix(booking.StartTime),
		unix(booking.EndTime),
		booking.Status,
		nullInt64(booking.TotalPriceCents),
		booking.CheckoutSessionID,
		unix(now),
		unix(now),
	)
	if err != nil {
		return mapError("insert booking", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

// UpdateBooking writes times, status, price and checkout session as a
// compare-and-set on booking.Version.
func (db *DB) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	query := `UPDATE bookings
              SET start_time = ?, end_time = ?, status = ?, total_price_cents = ?,
                  checkout_session_id = ?, updated_at = ?, version = version + 1
              WHERE id = ? AND version = ?`
	now := time.Now().UTC().Truncate(time.Second)
	result, err := db.ExecContext(ctx, query,
		unix(booking.StartTime),
		unix(booking.EndTime),
		booking.Status,
		nullInt64(booking.TotalPriceCents),
		booking.CheckoutSessionID,
		unix(now),
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
		if _, err := db.GetBooking(ctx, booking.ID); err != nil {
			return err
		}
		return domain.ErrConcurrentModification
	}

	booking.Version++
	booking.UpdatedAt = now
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking %d: %w", id, domain.ErrNotFound)
		}
		return nil, mapError("get booking", err)
	}
	return b, nil
}

func (db *DB) ListBookingsByRenter(ctx context.Context, renterID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE renter_id = ? ORDER BY start_time DESC, id DESC`
	return db.queryBookings(ctx, "list renter bookings", query, renterID)
}

func (db *DB) ListBookingsByItem(ctx context.Context, itemID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE item_id = ? ORDER BY start_time ASC, id ASC`
	return db.queryBookings(ctx, "list item bookings", query, itemID)
}

// FindFinishedBookings returns confirmed bookings whose range ended at or before now.
func (db *DB) FindFinishedBookings(ctx context.Context, now time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE status = ? AND end_time <= ? ORDER BY end_time ASC`
	return db.queryBookings(ctx, "find finished bookings", query, models.StatusConfirmed, unix(now))
}

// FindStalePendingBookings returns pending bookings created before the cutoff.
func (db *DB) FindStalePendingBookings(ctx context.Context, createdBefore time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE status = ? AND created_at < ? ORDER BY created_at ASC`
	return db.queryBookings(ctx, "find stale pending bookings", query, models.StatusPending, unix(createdBefore))
}
