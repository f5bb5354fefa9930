package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"renit/internal/domain"
	"renit/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingRowColumns = []string{
	"id", "item_id", "renter_id", "start_time", "end_time", "status",
	"total_price_cents", "checkout_session_id", "created_at", "updated_at", "version",
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	logger := zerolog.Nop()
	return New(db, &logger), mock
}

func TestMigrate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS btree_gist").WillReturnResult(sqlmock.NewResult(0, 0))
	for range schema[1:] {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, schema[4], "EXCLUDE USING gist")
}

func TestInsertBooking(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)

	t.Run("Success", func(t *testing.T) {
		s, mock := newMockStore(t)
		price := int64(4000)
		b := &models.Booking{ItemID: 2, RenterID: 3, StartTime: start, EndTime: end, Status: models.StatusPending, TotalPriceCents: &price}

		mock.ExpectQuery("INSERT INTO bookings").
			WithArgs(int64(2), int64(3), start, end, models.StatusPending, sqlmock.AnyArg(), "", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

		require.NoError(t, s.InsertBooking(ctx, b))
		assert.Equal(t, int64(11), b.ID)
		assert.Equal(t, int64(1), b.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ExclusionViolation", func(t *testing.T) {
		s, mock := newMockStore(t)
		b := &models.Booking{ItemID: 2, RenterID: 3, StartTime: start, EndTime: end, Status: models.StatusPending}

		mock.ExpectQuery("INSERT INTO bookings").
			WillReturnError(&pq.Error{Code: "23P01", Message: "conflicting key value violates exclusion constraint"})

		err := s.InsertBooking(ctx, b)
		assert.ErrorIs(t, err, domain.ErrConstraintViolation)
		assert.Zero(t, b.ID)
	})
}

func TestUpdateBooking(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	t.Run("Success", func(t *testing.T) {
		s, mock := newMockStore(t)
		b := &models.Booking{ID: 5, ItemID: 2, StartTime: start, EndTime: end, Status: models.StatusConfirmed, Version: 3}

		mock.ExpectExec("UPDATE bookings").
			WithArgs(start, end, models.StatusConfirmed, sqlmock.AnyArg(), "", sqlmock.AnyArg(), int64(5), int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.UpdateBooking(ctx, b))
		assert.Equal(t, int64(4), b.Version)
	})

	t.Run("StaleVersion", func(t *testing.T) {
		s, mock := newMockStore(t)
		b := &models.Booking{ID: 5, ItemID: 2, StartTime: start, EndTime: end, Status: models.StatusCanceled, Version: 1}

		mock.ExpectExec("UPDATE bookings").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id = \\$1").
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows(bookingRowColumns).
				AddRow(5, 2, 3, start, end, "confirmed", nil, "", start, start, 2))

		err := s.UpdateBooking(ctx, b)
		assert.ErrorIs(t, err, domain.ErrConcurrentModification)
		assert.Equal(t, int64(1), b.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing", func(t *testing.T) {
		s, mock := newMockStore(t)
		b := &models.Booking{ID: 99, StartTime: start, EndTime: end, Status: models.StatusCanceled, Version: 1}

		mock.ExpectExec("UPDATE bookings").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id = \\$1").
			WithArgs(int64(99)).
			WillReturnError(sql.ErrNoRows)

		assert.ErrorIs(t, s.UpdateBooking(ctx, b), domain.ErrNotFound)
	})

	t.Run("ExclusionViolation", func(t *testing.T) {
		s, mock := newMockStore(t)
		b := &models.Booking{ID: 5, StartTime: start, EndTime: end, Status: models.StatusPending, Version: 1}

		mock.ExpectExec("UPDATE bookings").WillReturnError(&pq.Error{Code: "23P01"})
		assert.ErrorIs(t, s.UpdateBooking(ctx, b), domain.ErrConstraintViolation)
	})
}

func TestFindActiveBookings(t *testing.T) {
	s, mock := newMockStore(t)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM bookings WHERE item_id = \\$1 AND id <> \\$2 AND status = ANY\\(\\$3\\)").
		WithArgs(int64(2), int64(0), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(bookingRowColumns).
			AddRow(1, 2, 3, start, start.Add(24*time.Hour), "pending", 1500, "", start, start, 1).
			AddRow(4, 2, 7, start.Add(48*time.Hour), start.Add(72*time.Hour), "confirmed", nil, "cs_1", start, start, 2))

	bookings, err := s.FindActiveBookings(context.Background(), 2, 0)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	require.NotNil(t, bookings[0].TotalPriceCents)
	assert.Equal(t, int64(1500), *bookings[0].TotalPriceCents)
	assert.Nil(t, bookings[1].TotalPriceCents)
	assert.Equal(t, "cs_1", bookings[1].CheckoutSessionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBooking_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id = \\$1").
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetBooking(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListItems_BuildsPlaceholders(t *testing.T) {
	s, mock := newMockStore(t)
	owner := int64(5)

	mock.ExpectQuery(`SELECT (.+) FROM items WHERE \(title ILIKE \$1 OR description ILIKE \$1\) AND owner_id = \$2 ORDER BY id ASC LIMIT \$3 OFFSET \$4`).
		WithArgs("%drill%", int64(5), int64(models.DefaultListLimit), int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "owner_id", "category_id", "title", "description", "location", "available",
			"price_cents", "photo_url", "latitude", "longitude", "created_at", "updated_at",
		}).AddRow(1, 5, nil, "Drill", "", "", true, 800, "", nil, nil, time.Now(), time.Now()))

	items, err := s.ListItems(context.Background(), models.ItemFilter{Search: "drill", OwnerID: &owner})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Drill", items[0].Title)
	assert.Nil(t, items[0].CategoryID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_Duplicate(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505"})

	err := s.CreateUser(context.Background(), &models.User{Username: "ivan", PasswordHash: "h"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMapError(t *testing.T) {
	other := errors.New("connection reset")
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"NoRows", sql.ErrNoRows, domain.ErrNotFound},
		{"Exclusion", &pq.Error{Code: "23P01"}, domain.ErrConstraintViolation},
		{"Unique", &pq.Error{Code: "23505"}, domain.ErrInvalidInput},
		{"ForeignKey", &pq.Error{Code: "23503"}, domain.ErrNotFound},
		{"Check", &pq.Error{Code: "23514"}, domain.ErrInvalidInput},
		{"Serialization", &pq.Error{Code: "40001"}, domain.ErrConcurrentModification},
		{"Other", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError("op", tt.err), tt.want)
		})
	}
	assert.NoError(t, mapError("op", nil))
}
