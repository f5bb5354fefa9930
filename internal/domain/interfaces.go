package domain

import (
	"context"
	"time"

	"renit/internal/models"
)

// BookingStore is the single source of truth for bookings. Inserts and updates
// must reject overlapping active ranges atomically with ErrConstraintViolation.
type BookingStore interface {
	FindActiveBookings(ctx context.Context, itemID, excludeID int64) ([]*models.Booking, error)
	InsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookingsByRenter(ctx context.Context, renterID int64) ([]*models.Booking, error)
	ListBookingsByItem(ctx context.Context, itemID int64) ([]*models.Booking, error)
	FindFinishedBookings(ctx context.Context, now time.Time) ([]*models.Booking, error)
	FindStalePendingBookings(ctx context.Context, createdBefore time.Time) ([]*models.Booking, error)
}

type ItemStore interface {
	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	UpdateItem(ctx context.Context, item *models.Item) error
	DeleteItem(ctx context.Context, id int64) error
	ListItems(ctx context.Context, filter models.ItemFilter) ([]*models.Item, error)
}

type CategoryStore interface {
	CreateCategory(ctx context.Context, category *models.Category) error
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	ListCategories(ctx context.Context) ([]*models.Category, error)
}

type ReviewStore interface {
	CreateReview(ctx context.Context, review *models.Review) error
	GetReview(ctx context.Context, id int64) (*models.Review, error)
	ListReviews(ctx context.Context, itemID int64) ([]*models.Review, error)
	DeleteReview(ctx context.Context, id int64) error
}

type MessageStore interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, itemID, participantID int64) ([]*models.Message, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

type SyncQueueStore interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
	GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error)
}

// Repository is implemented by both the SQLite and the PostgreSQL stores.
type Repository interface {
	BookingStore
	ItemStore
	CategoryStore
	ReviewStore
	MessageStore
	UserStore
	SyncQueueStore
	Ping(ctx context.Context) error
	Close() error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, booking *models.Booking) error
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

// MessageRelay fans a persisted chat message out to the item's current subscribers.
type MessageRelay interface {
	Publish(ctx context.Context, env models.ChatEnvelope) error
	Subscribe(ctx context.Context, itemID int64) (<-chan models.ChatEnvelope, func(), error)
}

type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (*models.PaymentEvent, error)
}

type TokenIssuer interface {
	GenerateAccessToken(userID int64, username string) (string, error)
}
