package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"renit/internal/models"
)

const syncTaskColumns = `id, task_type, booking_id, payload, status, retry_count, last_error,
	created_at, processed_at, next_retry_at`

func (s *Store) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	ts := now()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO sync_queue (task_type, booking_id, payload, status, retry_count, last_error, created_at, next_retry_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		task.TaskType, task.BookingID, task.Payload, task.Status, task.RetryCount, task.LastError, ts, task.NextRetryAt,
	).Scan(&task.ID)
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", err)
	}
	task.CreatedAt = ts
	return nil
}

func scanSyncTasks(rows *sql.Rows) ([]models.SyncTask, error) {
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var (
			t                      models.SyncTask
			processedAt, nextRetry sql.NullTime
		)
		err := rows.Scan(&t.ID, &t.TaskType, &t.BookingID, &t.Payload, &t.Status, &t.RetryCount, &t.LastError,
			&t.CreatedAt, &processedAt, &nextRetry)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		if processedAt.Valid {
			t.ProcessedAt = &processedAt.Time
		}
		if nextRetry.Valid {
			t.NextRetryAt = &nextRetry.Time
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	query := `SELECT ` + syncTaskColumns + ` FROM sync_queue
              WHERE status IN ($1, $2) AND (next_retry_at IS NULL OR next_retry_at <= $3)
              ORDER BY created_at ASC, id ASC LIMIT $4`
	rows, err := s.db.QueryContext(ctx, query, models.TaskStatusPending, models.TaskStatusRetry, now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending sync tasks: %w", err)
	}
	return scanSyncTasks(rows)
}

func (s *Store) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	args := []any{status, errMsg, nextRetryAt, id}

	switch status {
	case models.TaskStatusRetry:
		query = `UPDATE sync_queue SET status = $1, last_error = $2, next_retry_at = $3, retry_count = retry_count + 1 WHERE id = $4`
	case models.TaskStatusCompleted, models.TaskStatusFailed:
		query = `UPDATE sync_queue SET status = $1, last_error = $2, next_retry_at = $3, processed_at = $5 WHERE id = $4`
		args = append(args, now())
	default:
		query = `UPDATE sync_queue SET status = $1, last_error = $2, next_retry_at = $3 WHERE id = $4`
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update sync task status: %w", err)
	}
	return nil
}

func (s *Store) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	query := `SELECT ` + syncTaskColumns + ` FROM sync_queue WHERE status = $1 ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query, models.TaskStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed sync tasks: %w", err)
	}
	return scanSyncTasks(rows)
}
