package service

import (
	"context"
	"testing"
	"time"

	"renit/internal/chat"
	"renit/internal/domain"
	"renit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageService(t *testing.T) {
	db := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay := chat.NewMemoryRelay(models.SubscriberBuffer)
	svc := NewMessageService(db, db, db, relay, testLogger())

	owner := seedUser(t, db, "owner")
	renter := seedUser(t, db, "renter")
	item := seedItem(t, db, owner.ID, 100)

	ch, unsubscribe, err := svc.Subscribe(ctx, item.ID)
	require.NoError(t, err)
	defer unsubscribe()

	msg, err := svc.SendMessage(ctx, renter.ID, item.ID, owner.ID, " is it free on Friday? ")
	require.NoError(t, err)
	assert.Equal(t, "is it free on Friday?", msg.Content)

	select {
	case env := <-ch:
		assert.Equal(t, msg.ID, env.MessageID)
		assert.Equal(t, renter.ID, env.SenderID)
	case <-time.After(time.Second):
		t.Fatal("message was not relayed")
	}

	list, err := svc.ListMessages(ctx, owner.ID, item.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	t.Run("validation", func(t *testing.T) {
		_, err := svc.SendMessage(ctx, renter.ID, item.ID, owner.ID, "   ")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = svc.SendMessage(ctx, renter.ID, item.ID, renter.ID, "hi me")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = svc.SendMessage(ctx, renter.ID, 999, owner.ID, "hi")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = svc.SendMessage(ctx, renter.ID, item.ID, 999, "hi")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, _, err = svc.Subscribe(ctx, 999)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
