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

func (db *DB) CreateReview(ctx context.Context, review *models.Review) error {
	now := time.Now().UTC().Truncate(time.Second)
	result, err := db.ExecContext(ctx,
		`INSERT INTO reviews (item_id, reviewer_id, rating, comment, created_at) VALUES (?, ?, ?, ?, ?)`,
		review.ItemID, review.ReviewerID, review.Rating, review.Comment, unix(now))
	if err != nil {
		return mapError("create review", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	review.ID = id
	review.CreatedAt = now
	return nil
}

func scanReview(row rowScanner) (*models.Review, error) {
	var (
		r         models.Review
		createdAt int64
	)
	if err := row.Scan(&r.ID, &r.ItemID, &r.ReviewerID, &r.Rating, &r.Comment, &createdAt); err != nil {
		return nil, err
	}
	r.CreatedAt = fromUnix(createdAt)
	return &r, nil
}

func (db *DB) GetReview(ctx context.Context, id int64) (*models.Review, error) {
	r, err := scanReview(db.QueryRowContext(ctx,
		`SELECT id, item_id, reviewer_id, rating, comment, created_at FROM reviews WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("review %d: %w", id, domain.ErrNotFound)
		}
		return nil, mapError("get review", err)
	}
	return r, nil
}

func (db *DB) ListReviews(ctx context.Context, itemID int64) ([]*models.Review, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, item_id, reviewer_id, rating, comment, created_at
         FROM reviews WHERE item_id = ? ORDER BY created_at DESC, id DESC`, itemID)
	if err != nil {
		return nil, mapError("list reviews", err)
	}
	defer rows.Close()

	var reviews []*models.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func (db *DB) DeleteReview(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id)
	if err != nil {
		return mapError("delete review", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("review %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (db *DB) CreateMessage(ctx context.Context, msg *models.Message) error {
	now := time.Now().UTC().Truncate(time.Second)
	result, err := db.ExecContext(ctx,
		`INSERT INTO messages (sender_id, receiver_id, item_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.SenderID, msg.ReceiverID, msg.ItemID, msg.Content, unix(now))
	if err != nil {
		return mapError("create message", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	msg.ID = id
	msg.CreatedAt = now
	return nil
}

// ListMessages returns the item's messages the participant sent or received, oldest first.
func (db *DB) ListMessages(ctx context.Context, itemID, participantID int64) ([]*models.Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, sender_id, receiver_id, item_id, content, created_at
         FROM messages
         WHERE item_id = ? AND (sender_id = ? OR receiver_id = ?)
         ORDER BY created_at ASC, id ASC`, itemID, participantID, participantID)
	if err != nil {
		return nil, mapError("list messages", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var (
			m         models.Message
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.ItemID, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.CreatedAt = fromUnix(createdAt)
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
