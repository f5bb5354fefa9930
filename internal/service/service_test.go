package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"renit/internal/database"
	"renit/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func setupStore(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedUser(t *testing.T, db *database.DB, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, PasswordHash: "hash"}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

func seedItem(t *testing.T, db *database.DB, ownerID, priceCents int64) *models.Item {
	t.Helper()
	item := &models.Item{OwnerID: ownerID, Title: "camera", Available: true, PriceCents: priceCents}
	require.NoError(t, db.CreateItem(context.Background(), item))
	return item
}

func jan(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

type publishedEvent struct {
	Type    string
	Payload json.RawMessage
}

type recordingBus struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (b *recordingBus) PublishJSON(eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{Type: eventType, Payload: data})
	return nil
}

func (b *recordingBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.Type
	}
	return out
}

type recordingSync struct {
	mu    sync.Mutex
	tasks []int64
}

func (s *recordingSync) EnqueueTask(_ context.Context, _ string, booking *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, booking.ID)
	return nil
}

type mockBookingStore struct {
	mock.Mock
}

func (m *mockBookingStore) FindActiveBookings(ctx context.Context, itemID, excludeID int64) ([]*models.Booking, error) {
	args := m.Called(ctx, itemID, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockBookingStore) InsertBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockBookingStore) UpdateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockBookingStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockBookingStore) ListBookingsByRenter(ctx context.Context, id int64) ([]*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockBookingStore) ListBookingsByItem(ctx context.Context, id int64) ([]*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockBookingStore) FindFinishedBookings(ctx context.Context, now time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockBookingStore) FindStalePendingBookings(ctx context.Context, cutoff time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

type mockItemStore struct {
	mock.Mock
}

func (m *mockItemStore) CreateItem(ctx context.Context, i *models.Item) error {
	return m.Called(ctx, i).Error(0)
}
func (m *mockItemStore) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Item), args.Error(1)
}
func (m *mockItemStore) UpdateItem(ctx context.Context, i *models.Item) error {
	return m.Called(ctx, i).Error(0)
}
func (m *mockItemStore) DeleteItem(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockItemStore) ListItems(ctx context.Context, f models.ItemFilter) ([]*models.Item, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Item), args.Error(1)
}
