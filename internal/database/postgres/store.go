// Package postgres is the PostgreSQL implementation of domain.Repository.
// Range exclusion for active bookings is enforced by a btree_gist EXCLUDE
// constraint, so concurrent writers cannot both commit overlapping rows.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"renit/internal/config"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

type Store struct {
	db     *sql.DB
	logger *zerolog.Logger
}

// New wraps an already opened connection pool.
func New(db *sql.DB, logger *zerolog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Open connects with the configured DSN and applies the schema.
func Open(ctx context.Context, cfg config.PostgresConfig, logger *zerolog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
		db.SetMaxIdleConns(cfg.MaxConnections)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := New(db, logger)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if logger != nil {
		logger.Info().Str("host", cfg.Host).Str("dbname", cfg.DBName).Msg("postgres initialized")
	}
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

var activeStatuses = pq.Array([]string{"pending", "confirmed"})

type rowScanner interface {
	Scan(dest ...any) error
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
