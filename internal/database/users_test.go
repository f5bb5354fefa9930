package database

import (
	"context"
	"testing"

	"renit/internal/domain"
	"renit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	chatID := int64(424242)
	user := &models.User{Username: "ivan", Email: "ivan@example.com", PasswordHash: "h", TelegramChatID: &chatID}
	require.NoError(t, db.CreateUser(ctx, user))
	require.NotZero(t, user.ID)

	byID, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ivan", byID.Username)
	require.NotNil(t, byID.TelegramChatID)
	assert.Equal(t, chatID, *byID.TelegramChatID)

	byName, err := db.GetUserByUsername(ctx, "ivan")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)
	assert.Equal(t, "h", byName.PasswordHash)

	_, err = db.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = db.CreateUser(ctx, &models.User{Username: "ivan", PasswordHash: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
