package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"renit/internal/domain"
	"renit/internal/models"
)

const syncTaskSelect = `SELECT id, task_type, booking_id, payload, status, retry_count, last_error,
       created_at, processed_at, next_retry_at
  FROM sync_queue`

// retry bumps the counter; terminal statuses stamp processed_at.
const syncTaskUpdate = `UPDATE sync_queue
   SET status = ?1,
       last_error = ?2,
       next_retry_at = ?3,
       retry_count = retry_count + CASE WHEN ?1 = 'retry' THEN 1 ELSE 0 END,
       processed_at = CASE WHEN ?1 IN ('completed', 'failed') THEN ?4 ELSE processed_at END
 WHERE id = ?5`

func scanSyncTask(row rowScanner) (models.SyncTask, error) {
	var (
		t                      models.SyncTask
		createdAt              int64
		processedAt, nextRetry sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.TaskType, &t.BookingID, &t.Payload, &t.Status, &t.RetryCount, &t.LastError,
		&createdAt, &processedAt, &nextRetry); err != nil {
		return t, err
	}
	t.CreatedAt = fromUnix(createdAt)
	t.ProcessedAt = fromNullUnix(processedAt)
	t.NextRetryAt = fromNullUnix(nextRetry)
	return t, nil
}

func (db *DB) querySyncTasks(ctx context.Context, op, where string, args ...any) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx, syncTaskSelect+" "+where, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		t, err := scanSyncTask(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, mapError(op, rows.Err())
}

func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	createdAt := time.Now().UTC().Truncate(time.Second)
	res, err := db.ExecContext(ctx,
		`INSERT INTO sync_queue (task_type, booking_id, payload, status, retry_count, last_error, created_at, next_retry_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TaskType, task.BookingID, task.Payload, task.Status, task.RetryCount, task.LastError,
		unix(createdAt), nullUnix(task.NextRetryAt),
	)
	if err != nil {
		return mapError("create sync task", err)
	}
	if task.ID, err = res.LastInsertId(); err != nil {
		return mapError("create sync task", err)
	}
	task.CreatedAt = createdAt
	return nil
}

// GetPendingSyncTasks returns pending tasks and retries that are due, oldest first.
func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	return db.querySyncTasks(ctx, "get pending sync tasks",
		`WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
         ORDER BY created_at, id LIMIT ?`,
		models.TaskStatusPending, models.TaskStatusRetry, unix(time.Now()), limit)
}

func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	res, err := db.ExecContext(ctx, syncTaskUpdate, status, errMsg, nullUnix(nextRetryAt), unix(time.Now()), id)
	if err != nil {
		return mapError("update sync task", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update sync task %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (db *DB) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	return db.querySyncTasks(ctx, "get failed sync tasks",
		`WHERE status = ? ORDER BY created_at DESC, id DESC`, models.TaskStatusFailed)
}
