package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"renit/internal/config"

	"github.com/rs/zerolog"
)

const (
	snapshotPrefix = "renit_"
	snapshotExt    = ".db"
	snapshotStamp  = "20060102_150405"
)

// BackupService takes consistent snapshots of the SQLite store with
// VACUUM INTO and keeps RetentionDays worth of them.
type BackupService struct {
	db     *DB
	cfg    config.BackupConfig
	logger *zerolog.Logger
	now    func() time.Time
}

func NewBackupService(db *DB, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	return &BackupService{db: db, cfg: cfg, logger: logger, now: time.Now}
}

// Run takes one snapshot and prunes expired ones. It is the cron job body.
func (s *BackupService) Run(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	path, err := s.PerformBackup(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("backup failed")
		return err
	}
	removed := s.CleanupOldBackups()
	s.logger.Info().Str("path", path).Int("pruned", removed).Msg("backup completed")
	return nil
}

// PerformBackup writes a snapshot and returns its path.
func (s *BackupService) PerformBackup(ctx context.Context) (string, error) {
	if s.db == nil || s.db.Path() == ":memory:" {
		return "", errors.New("backup requires a file-backed database")
	}
	if err := os.MkdirAll(s.cfg.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	path := filepath.Join(s.cfg.StoragePath, snapshotName(s.now()))
	// VACUUM INTO refuses to overwrite an existing file
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", path, err)
	}
	return path, nil
}

func snapshotName(t time.Time) string {
	return snapshotPrefix + t.UTC().Format(snapshotStamp) + snapshotExt
}

// snapshotTime reads the timestamp back out of a snapshot file name.
func snapshotTime(name string) (time.Time, bool) {
	stamp, ok := strings.CutPrefix(name, snapshotPrefix)
	if !ok {
		return time.Time{}, false
	}
	stamp, ok = strings.CutSuffix(stamp, snapshotExt)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(snapshotStamp, stamp, time.UTC)
	return t, err == nil
}

// CleanupOldBackups deletes snapshots older than the retention window and
// returns how many were removed. Files not named like snapshots are left alone.
func (s *BackupService) CleanupOldBackups() int {
	if s.cfg.RetentionDays <= 0 {
		return 0
	}

	entries, err := os.ReadDir(s.cfg.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Str("dir", s.cfg.StoragePath).Msg("read backup dir")
		return 0
	}

	cutoff := s.now().AddDate(0, 0, -s.cfg.RetentionDays)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		taken, ok := snapshotTime(e.Name())
		if !ok || !taken.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.cfg.StoragePath, e.Name())); err != nil {
			s.logger.Warn().Err(err).Str("file", e.Name()).Msg("remove expired backup")
			continue
		}
		removed++
	}
	return removed
}
