package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"renit/internal/domain"
	"renit/internal/models"
)

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC().Truncate(time.Second)
	result, err := db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, telegram_chat_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.Username, user.Email, user.PasswordHash, nullInt64(user.TelegramChatID), unix(now))
	if err != nil {
		return mapError("create user", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	return nil
}

func (db *DB) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var (
		u         models.User
		chatID    sql.NullInt64
		createdAt int64
	)
	err := db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, telegram_chat_id, created_at FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &chatID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %v: %w", arg, domain.ErrNotFound)
		}
		return nil, mapError("get user", err)
	}
	u.TelegramChatID = fromNullInt64(chatID)
	u.CreatedAt = fromUnix(createdAt)
	return &u, nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return db.getUser(ctx, "id = ?", id)
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return db.getUser(ctx, "username = ?", username)
}
