package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"renit/internal/domain"
	"renit/internal/models"
)

func (s *Store) CreateReview(ctx context.Context, review *models.Review) error {
	ts := now()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO reviews (item_id, reviewer_id, rating, comment, created_at)
         VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		review.ItemID, review.ReviewerID, review.Rating, review.Comment, ts).Scan(&review.ID)
	if err != nil {
		return mapError("create review", err)
	}
	review.CreatedAt = ts
	return nil
}

func scanReview(row rowScanner) (*models.Review, error) {
	var r models.Review
	if err := row.Scan(&r.ID, &r.ItemID, &r.ReviewerID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

func (s *Store) GetReview(ctx context.Context, id int64) (*models.Review, error) {
	r, err := scanReview(s.db.QueryRowContext(ctx,
		`SELECT id, item_id, reviewer_id, rating, comment, created_at FROM reviews WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("review %d: %w", id, domain.ErrNotFound)
		}
		return nil, mapError("get review", err)
	}
	return r, nil
}

func (s *Store) ListReviews(ctx context.Context, itemID int64) ([]*models.Review, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, reviewer_id, rating, comment, created_at
         FROM reviews WHERE item_id = $1 ORDER BY created_at DESC, id DESC`, itemID)
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

func (s *Store) DeleteReview(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return mapError("delete review", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("review %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) CreateMessage(ctx context.Context, msg *models.Message) error {
	ts := now()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO messages (sender_id, receiver_id, item_id, content, created_at)
         VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		msg.SenderID, msg.ReceiverID, msg.ItemID, msg.Content, ts).Scan(&msg.ID)
	if err != nil {
		return mapError("create message", err)
	}
	msg.CreatedAt = ts
	return nil
}

func (s *Store) ListMessages(ctx context.Context, itemID, participantID int64) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender_id, receiver_id, item_id, content, created_at
         FROM messages
         WHERE item_id = $1 AND (sender_id = $2 OR receiver_id = $2)
         ORDER BY created_at ASC, id ASC`, itemID, participantID)
	if err != nil {
		return nil, mapError("list messages", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.ItemID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
