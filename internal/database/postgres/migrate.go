package postgres

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`CREATE TABLE IF NOT EXISTS users (
        id BIGSERIAL PRIMARY KEY,
        username TEXT NOT NULL UNIQUE,
        email TEXT NOT NULL DEFAULT '',
        password_hash TEXT NOT NULL,
        telegram_chat_id BIGINT,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS categories (
        id BIGSERIAL PRIMARY KEY,
        name TEXT NOT NULL UNIQUE,
        description TEXT NOT NULL DEFAULT ''
    )`,
	`CREATE TABLE IF NOT EXISTS items (
        id BIGSERIAL PRIMARY KEY,
        owner_id BIGINT NOT NULL REFERENCES users(id),
        category_id BIGINT REFERENCES categories(id) ON DELETE SET NULL,
        title TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        location TEXT NOT NULL DEFAULT '',
        available BOOLEAN NOT NULL DEFAULT TRUE,
        price_cents BIGINT NOT NULL CHECK (price_cents >= 0),
        photo_url TEXT NOT NULL DEFAULT '',
        latitude DOUBLE PRECISION,
        longitude DOUBLE PRECISION,
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS bookings (
        id BIGSERIAL PRIMARY KEY,
        item_id BIGINT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
        renter_id BIGINT NOT NULL REFERENCES users(id),
        start_time TIMESTAMPTZ NOT NULL,
        end_time TIMESTAMPTZ NOT NULL,
        status TEXT NOT NULL DEFAULT 'pending'
            CHECK (status IN ('pending', 'confirmed', 'completed', 'canceled')),
        total_price_cents BIGINT,
        checkout_session_id TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL,
        version BIGINT NOT NULL DEFAULT 1,
        CHECK (end_time > start_time),
        CONSTRAINT bookings_no_overlap EXCLUDE USING gist (
            item_id WITH =,
            tstzrange(start_time, end_time, '[)') WITH &&
        ) WHERE (status IN ('pending', 'confirmed'))
    )`,
	`CREATE TABLE IF NOT EXISTS reviews (
        id BIGSERIAL PRIMARY KEY,
        item_id BIGINT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
        reviewer_id BIGINT NOT NULL REFERENCES users(id),
        rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
        comment TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS messages (
        id BIGSERIAL PRIMARY KEY,
        sender_id BIGINT NOT NULL REFERENCES users(id),
        receiver_id BIGINT NOT NULL REFERENCES users(id),
        item_id BIGINT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
        content TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS sync_queue (
        id BIGSERIAL PRIMARY KEY,
        task_type TEXT NOT NULL,
        booking_id BIGINT NOT NULL,
        payload TEXT NOT NULL,
        status TEXT NOT NULL DEFAULT 'pending',
        retry_count INTEGER NOT NULL DEFAULT 0,
        last_error TEXT,
        created_at TIMESTAMPTZ NOT NULL,
        processed_at TIMESTAMPTZ,
        next_retry_at TIMESTAMPTZ
    )`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_renter_id ON bookings(renter_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_status_end ON bookings(status, end_time)`,
	`CREATE INDEX IF NOT EXISTS idx_items_owner_id ON items(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_item_id ON reviews(item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_item_id ON messages(item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at)`,
}

// Migrate applies the schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate postgres schema: %w", err)
		}
	}
	return nil
}
