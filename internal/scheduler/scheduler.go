package scheduler

import (
	"context"
	"fmt"
	"time"

	"renit/internal/config"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const jobTimeout = 5 * time.Minute

// BookingSweeper moves bookings whose state is decided by the clock.
type BookingSweeper interface {
	CompleteFinished(ctx context.Context, now time.Time) (int, error)
	ExpireStalePending(ctx context.Context, cutoff time.Time) (int, error)
}

type BackupRunner interface {
	Run(ctx context.Context) error
}

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron       *cron.Cron
	sweeper    BookingSweeper
	backup     BackupRunner
	pendingTTL time.Duration
	now        func() time.Time
	ctx        context.Context
	cancel     context.CancelFunc
	logger     zerolog.Logger
}

// NewScheduler registers the booking jobs and, when backup is not nil, the
// backup job. Schedules use six fields with seconds, evaluated in UTC.
func NewScheduler(cfg *config.Config, sweeper BookingSweeper, backup BackupRunner, logger *zerolog.Logger) (*Scheduler, error) {
	// Create cron with UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:       c,
		sweeper:    sweeper,
		backup:     backup,
		pendingTTL: cfg.Booking.PendingTTL,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger.With().Str("component", "scheduler").Logger(),
	}

	if err := s.registerJobs(cfg); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) registerJobs(cfg *config.Config) error {
	if _, err := s.cron.AddFunc(cfg.Booking.CompleteSchedule, s.CompleteFinished); err != nil {
		return fmt.Errorf("register complete job %q: %w", cfg.Booking.CompleteSchedule, err)
	}

	if s.pendingTTL > 0 {
		if _, err := s.cron.AddFunc(cfg.Booking.ExpireSchedule, s.ExpireStalePending); err != nil {
			return fmt.Errorf("register expire job %q: %w", cfg.Booking.ExpireSchedule, err)
		}
	} else {
		s.logger.Info().Msg("pending booking expiry disabled")
	}

	if s.backup != nil {
		if _, err := s.cron.AddFunc(cfg.Backup.Schedule, s.Backup); err != nil {
			return fmt.Errorf("register backup job %q: %w", cfg.Backup.Schedule, err)
		}
	}

	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("cron jobs registered")
	return nil
}

// CompleteFinished completes confirmed bookings whose range has ended.
func (s *Scheduler) CompleteFinished() {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	n, err := s.sweeper.CompleteFinished(ctx, s.now().UTC())
	if err != nil {
		s.logger.Error().Err(err).Msg("complete finished bookings")
		return
	}
	if n > 0 {
		s.logger.Info().Int("count", n).Msg("bookings completed")
	}
}

// ExpireStalePending cancels unpaid bookings older than the pending TTL.
func (s *Scheduler) ExpireStalePending() {
	if s.pendingTTL <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	cutoff := s.now().UTC().Add(-s.pendingTTL)
	n, err := s.sweeper.ExpireStalePending(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("expire stale pending bookings")
		return
	}
	if n > 0 {
		s.logger.Info().Int("count", n).Time("cutoff", cutoff).Msg("stale pending bookings canceled")
	}
}

func (s *Scheduler) Backup() {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	if err := s.backup.Run(ctx); err != nil {
		s.logger.Error().Err(err).Msg("backup job")
	}
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("cron scheduler started")
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("cron scheduler stopped")
}

func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}
