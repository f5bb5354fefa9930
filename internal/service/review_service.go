package service

import (
	"context"
	"strings"

	"renit/internal/domain"
	"renit/internal/models"
)

type ReviewService struct {
	reviews domain.ReviewStore
	items   domain.ItemStore
}

func NewReviewService(reviews domain.ReviewStore, items domain.ItemStore) *ReviewService {
	return &ReviewService{reviews: reviews, items: items}
}

func (s *ReviewService) CreateReview(ctx context.Context, actorID, itemID int64, rating int, comment string) (*models.Review, error) {
	if rating < models.MinRating || rating > models.MaxRating {
		return nil, domain.InvalidInput("rating must be between %d and %d", models.MinRating, models.MaxRating)
	}
	if _, err := s.items.GetItem(ctx, itemID); err != nil {
		return nil, err
	}

	review := &models.Review{
		ItemID:     itemID,
		ReviewerID: actorID,
		Rating:     rating,
		Comment:    strings.TrimSpace(comment),
	}
	if err := s.reviews.CreateReview(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

func (s *ReviewService) ListReviews(ctx context.Context, itemID int64) ([]*models.Review, error) {
	return s.reviews.ListReviews(ctx, itemID)
}

// DeleteReview lets reviewers remove their own reviews.
func (s *ReviewService) DeleteReview(ctx context.Context, actorID, reviewID int64) error {
	review, err := s.reviews.GetReview(ctx, reviewID)
	if err != nil {
		return err
	}
	if review.ReviewerID != actorID {
		return domain.ErrForbidden
	}
	return s.reviews.DeleteReview(ctx, reviewID)
}
