package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
)

// Sync task statuses stored in sync_queue.
const (
	TaskStatusPending   = "pending"
	TaskStatusRetry     = "retry"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

const (
	// MinPasswordLength is the shortest password accepted at signup.
	MinPasswordLength = 8

	// MinRating and MaxRating bound a review rating.
	MinRating = 1
	MaxRating = 5

	// WorkerQueueSize is the sync worker channel capacity.
	WorkerQueueSize = 128

	// SubscriberBuffer is the per-subscriber chat channel buffer.
	SubscriberBuffer = 32

	// DefaultListLimit caps list results when no limit is given.
	DefaultListLimit = 100
)
