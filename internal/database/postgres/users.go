package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"renit/internal/domain"
	"renit/internal/models"
)

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	ts := now()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_hash, telegram_chat_id, created_at)
         VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		user.Username, user.Email, user.PasswordHash, user.TelegramChatID, ts).Scan(&user.ID)
	if err != nil {
		return mapError("create user", err)
	}
	user.CreatedAt = ts
	return nil
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var (
		u      models.User
		chatID sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, telegram_chat_id, created_at FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &chatID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %v: %w", arg, domain.ErrNotFound)
		}
		return nil, mapError("get user", err)
	}
	if chatID.Valid {
		u.TelegramChatID = &chatID.Int64
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, "id = $1", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username = $1", username)
}
