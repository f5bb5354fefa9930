package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"renit/internal/domain"
	"renit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncQueue(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.SyncTask{
		TaskType:  "upsert",
		BookingID: 7,
		Payload:   `{"booking_id":7}`,
		Status:    models.TaskStatusPending,
	}
	require.NoError(t, db.CreateSyncTask(ctx, task))
	require.NotZero(t, task.ID)

	later := time.Now().Add(time.Hour)
	delayed := &models.SyncTask{
		TaskType:    "upsert",
		BookingID:   8,
		Payload:     `{}`,
		Status:      models.TaskStatusRetry,
		NextRetryAt: &later,
	}
	require.NoError(t, db.CreateSyncTask(ctx, delayed))

	pending, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, task.ID, pending[0].ID)
	assert.Equal(t, `{"booking_id":7}`, pending[0].Payload)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.TaskStatusRetry, "sheets down", &past))

	pending, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "sheets down", *pending[0].LastError)
	require.NotNil(t, pending[0].NextRetryAt)

	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.TaskStatusFailed, "gave up", nil))

	pending, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	failed, err := db.GetFailedSyncTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, task.ID, failed[0].ID)
	assert.NotNil(t, failed[0].ProcessedAt)
}

func TestSyncQueue_UpdateMissing(t *testing.T) {
	db := setupTestDB(t)
	err := db.UpdateSyncTaskStatus(context.Background(), 404, models.TaskStatusCompleted, "", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSyncQueue_CompletedKeepsRetryCount(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.SyncTask{TaskType: "delete", BookingID: 1, Payload: `{}`, Status: models.TaskStatusPending}
	require.NoError(t, db.CreateSyncTask(ctx, task))
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.TaskStatusRetry, "x", nil))
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil))

	var retries int
	var processed sql.NullInt64
	require.NoError(t, db.QueryRowContext(ctx, `SELECT retry_count, processed_at FROM sync_queue WHERE id = ?`, task.ID).Scan(&retries, &processed))
	assert.Equal(t, 1, retries)
	assert.True(t, processed.Valid)
}
