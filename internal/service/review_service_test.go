package service

import (
	"context"
	"testing"

	"renit/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewService(t *testing.T) {
	db := setupStore(t)
	ctx := context.Background()
	svc := NewReviewService(db, db)

	owner := seedUser(t, db, "owner")
	reviewer := seedUser(t, db, "reviewer")
	item := seedItem(t, db, owner.ID, 100)

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.CreateReview(ctx, reviewer.ID, item.ID, rating, "meh")
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "rating %d", rating)
	}

	_, err := svc.CreateReview(ctx, reviewer.ID, 999, 5, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	review, err := svc.CreateReview(ctx, reviewer.ID, item.ID, 5, "  great  ")
	require.NoError(t, err)
	assert.Equal(t, "great", review.Comment)

	list, err := svc.ListReviews(ctx, item.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, svc.DeleteReview(ctx, owner.ID, review.ID), domain.ErrForbidden)
	require.NoError(t, svc.DeleteReview(ctx, reviewer.ID, review.ID))
	assert.ErrorIs(t, svc.DeleteReview(ctx, reviewer.ID, review.ID), domain.ErrNotFound)
}
