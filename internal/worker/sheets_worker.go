package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"renit/internal/domain"
	"renit/internal/metrics"
	"renit/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Task types understood by the sheets mirror.
const (
	TaskUpsert       = "upsert"
	TaskDelete       = "delete"
	TaskUpdateStatus = "update_status"
)

const (
	queueKey      = "renit:sheets:queue"
	deadLetterKey = "renit:sheets:deadletter"

	defaultPollInterval = 2 * time.Second
	defaultBatchSize    = 20
	redisPopTimeout     = time.Second
)

var (
	errNoBooking   = errors.New("booking payload missing")
	errNoBookingID = errors.New("booking id missing")
	errNoStatus    = errors.New("booking status missing")
)

// sheetTaskPayload is stored in SyncTask.Payload as JSON.
type sheetTaskPayload struct {
	BookingID int64           `json:"booking_id"`
	Booking   *models.Booking `json:"booking,omitempty"`
	Status    string          `json:"status,omitempty"`
}

type SheetsClient interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	DeleteBookingRow(ctx context.Context, bookingID int64) error
	UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error
}

type taskHandler func(ctx context.Context, p sheetTaskPayload) error

// SheetsWorker mirrors booking changes into a spreadsheet. Every task lands in
// the sync_queue table before anything else; a Redis list (or a local channel
// when Redis is absent) only shortens the path to the worker. Whatever both
// hand-offs miss, including due retries, is picked up by polling the table.
type SheetsWorker struct {
	store    domain.SyncQueueStore
	redis    *redis.Client
	retry    RetryPolicy
	local    chan models.SyncTask
	handlers map[string]taskHandler

	pollInterval time.Duration
	batchSize    int
	logger       zerolog.Logger
}

func NewSheetsWorker(store domain.SyncQueueStore, sheets SheetsClient, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SheetsWorker {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "sheets_worker").Logger()
	}

	w := &SheetsWorker{
		store:        store,
		redis:        redisClient,
		retry:        retry.withDefaults(),
		local:        make(chan models.SyncTask, models.WorkerQueueSize),
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
		logger:       l,
	}
	w.handlers = map[string]taskHandler{
		TaskUpsert: func(ctx context.Context, p sheetTaskPayload) error {
			if p.Booking == nil {
				return errNoBooking
			}
			return sheets.UpsertBooking(ctx, p.Booking)
		},
		TaskDelete: func(ctx context.Context, p sheetTaskPayload) error {
			if p.BookingID == 0 {
				return errNoBookingID
			}
			return sheets.DeleteBookingRow(ctx, p.BookingID)
		},
		TaskUpdateStatus: func(ctx context.Context, p sheetTaskPayload) error {
			if p.BookingID == 0 {
				return errNoBookingID
			}
			if p.Status == "" {
				return errNoStatus
			}
			return sheets.UpdateBookingStatus(ctx, p.BookingID, p.Status)
		},
	}
	return w
}

// EnqueueTask records a sheet update for the booking. It fails only when the
// task cannot be persisted; a failed hand-off is left to polling.
func (w *SheetsWorker) EnqueueTask(ctx context.Context, taskType string, booking *models.Booking) error {
	if _, ok := w.handlers[taskType]; !ok {
		return fmt.Errorf("unknown sheet task type %q", taskType)
	}
	if booking == nil || booking.ID == 0 {
		return errNoBookingID
	}

	raw, err := json.Marshal(sheetTaskPayload{BookingID: booking.ID, Booking: booking, Status: booking.Status})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.SyncTask{
		TaskType:  taskType,
		BookingID: booking.ID,
		Payload:   string(raw),
		Status:    models.TaskStatusPending,
	}
	if err := w.store.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}
	metrics.IncSyncTask("enqueued")

	w.handoff(ctx, task)
	return nil
}

func (w *SheetsWorker) handoff(ctx context.Context, task models.SyncTask) {
	if w.redis != nil {
		err := w.pushJSON(ctx, queueKey, task)
		if err == nil {
			return
		}
		w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis hand-off failed, using local queue")
	}

	select {
	case w.local <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("local queue full, task left to polling")
	}
}

// Start runs until ctx is done.
func (w *SheetsWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("poll_interval", w.pollInterval).Bool("redis", w.redis != nil).Msg("started")
	defer w.logger.Info().Msg("stopped")

	for ctx.Err() == nil {
		if task, ok := w.next(ctx); ok {
			w.run(ctx, &task)
			continue
		}
		if n := w.poll(ctx); n == 0 {
			w.idle(ctx)
		}
	}
}

// next returns a handed-off task, local channel first.
func (w *SheetsWorker) next(ctx context.Context) (models.SyncTask, bool) {
	select {
	case task := <-w.local:
		return task, true
	default:
	}
	return w.popRedis(ctx)
}

// poll runs one batch of due tasks from the store and reports how many ran.
func (w *SheetsWorker) poll(ctx context.Context) int {
	tasks, err := w.store.GetPendingSyncTasks(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("fetch due sync tasks")
		}
		return 0
	}
	for i := range tasks {
		w.run(ctx, &tasks[i])
	}
	return len(tasks)
}

func (w *SheetsWorker) idle(ctx context.Context) {
	t := time.NewTimer(w.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *SheetsWorker) popRedis(ctx context.Context) (models.SyncTask, bool) {
	var task models.SyncTask
	if w.redis == nil {
		return task, false
	}

	res, err := w.redis.BRPop(ctx, redisPopTimeout, queueKey).Result()
	switch {
	case err == nil:
	case errors.Is(err, redis.Nil), ctx.Err() != nil:
		return task, false
	default:
		w.logger.Error().Err(err).Msg("redis BRPOP")
		return task, false
	}

	// res = [key, value]
	if len(res) != 2 {
		return task, false
	}
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return task, false
	}
	return task, true
}

// run applies one task and records the outcome.
func (w *SheetsWorker) run(ctx context.Context, task *models.SyncTask) {
	var payload sheetTaskPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		// a malformed payload will not decode on retry
		w.fail(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.dispatch(ctx, task.TaskType, payload); err != nil {
		w.reschedule(ctx, task, err)
		return
	}

	w.mark(ctx, task, models.TaskStatusCompleted, "", nil)
}

func (w *SheetsWorker) dispatch(ctx context.Context, taskType string, payload sheetTaskPayload) error {
	h, ok := w.handlers[taskType]
	if !ok {
		return fmt.Errorf("unknown sheet task type %q", taskType)
	}
	return h(ctx, payload)
}

func (w *SheetsWorker) reschedule(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	at, ok := w.retry.Schedule(time.Now(), attempt)
	if !ok {
		w.fail(ctx, task, cause)
		return
	}

	w.mark(ctx, task, models.TaskStatusRetry, cause.Error(), &at)
	w.logger.Warn().
		Err(cause).
		Int64("task_id", task.ID).
		Int("attempt", attempt).
		Time("next_retry_at", at).
		Msg("sync task rescheduled")
}

func (w *SheetsWorker) fail(ctx context.Context, task *models.SyncTask, cause error) {
	w.mark(ctx, task, models.TaskStatusFailed, cause.Error(), nil)
	w.logger.Error().
		Err(cause).
		Int64("task_id", task.ID).
		Int64("booking_id", task.BookingID).
		Msg("sync task failed")

	if w.redis == nil {
		return
	}
	if err := w.pushJSON(ctx, deadLetterKey, task); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("dead letter push")
	}
}

func (w *SheetsWorker) mark(ctx context.Context, task *models.SyncTask, status, lastErr string, nextRetry *time.Time) {
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, status, lastErr, nextRetry); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Str("status", status).Msg("update sync task")
	}
	metrics.IncSyncTask(status)
}

func (w *SheetsWorker) pushJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
