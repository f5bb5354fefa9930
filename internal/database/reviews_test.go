package database

import (
	"context"
	"testing"

	"renit/internal/domain"
	"renit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviews(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	renter := createTestUser(t, db, "renter")
	item := createTestItem(t, db, owner.ID, "sup board", 1800)

	r1 := &models.Review{ItemID: item.ID, ReviewerID: renter.ID, Rating: 5, Comment: "great"}
	r2 := &models.Review{ItemID: item.ID, ReviewerID: owner.ID, Rating: 3}
	require.NoError(t, db.CreateReview(ctx, r1))
	require.NoError(t, db.CreateReview(ctx, r2))

	err := db.CreateReview(ctx, &models.Review{ItemID: item.ID, ReviewerID: renter.ID, Rating: 6})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	got, err := db.GetReview(ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, "great", got.Comment)
	assert.Equal(t, 5, got.Rating)

	list, err := db.ListReviews(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, r2.ID, list[0].ID)

	require.NoError(t, db.DeleteReview(ctx, r1.ID))
	_, err = db.GetReview(ctx, r1.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, db.DeleteReview(ctx, r1.ID), domain.ErrNotFound)
}

func TestMessages(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	renter := createTestUser(t, db, "renter")
	stranger := createTestUser(t, db, "stranger")
	item := createTestItem(t, db, owner.ID, "grill", 600)

	first := &models.Message{SenderID: renter.ID, ReceiverID: owner.ID, ItemID: item.ID, Content: "is it free on friday?"}
	second := &models.Message{SenderID: owner.ID, ReceiverID: renter.ID, ItemID: item.ID, Content: "yes"}
	require.NoError(t, db.CreateMessage(ctx, first))
	require.NoError(t, db.CreateMessage(ctx, second))
	assert.False(t, first.CreatedAt.IsZero())

	msgs, err := db.ListMessages(ctx, item.ID, renter.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.Equal(t, "yes", msgs[1].Content)

	msgs, err = db.ListMessages(ctx, item.ID, stranger.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	err = db.CreateMessage(ctx, &models.Message{SenderID: renter.ID, ReceiverID: owner.ID, ItemID: 999, Content: "?"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
