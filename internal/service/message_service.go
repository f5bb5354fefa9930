package service

import (
	"context"
	"strings"

	"renit/internal/domain"
	"renit/internal/models"

	"github.com/rs/zerolog"
)

// MessageService persists chat messages and hands them to the relay.
type MessageService struct {
	messages domain.MessageStore
	items    domain.ItemStore
	users    domain.UserStore
	relay    domain.MessageRelay
	logger   *zerolog.Logger
}

func NewMessageService(messages domain.MessageStore, items domain.ItemStore, users domain.UserStore, relay domain.MessageRelay, logger *zerolog.Logger) *MessageService {
	return &MessageService{
		messages: messages,
		items:    items,
		users:    users,
		relay:    relay,
		logger:   logger,
	}
}

// SendMessage stores the message first; relay delivery is best-effort.
func (s *MessageService) SendMessage(ctx context.Context, actorID, itemID, receiverID int64, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.InvalidInput("content is required")
	}
	if receiverID == actorID {
		return nil, domain.InvalidInput("cannot message yourself")
	}
	if _, err := s.items.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	if _, err := s.users.GetUserByID(ctx, receiverID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		SenderID:   actorID,
		ReceiverID: receiverID,
		ItemID:     itemID,
		Content:    content,
	}
	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	if s.relay != nil {
		if err := s.relay.Publish(ctx, msg.Envelope()); err != nil {
			s.logger.Error().Err(err).Int64("message_id", msg.ID).Int64("item_id", itemID).Msg("relay publish error")
		}
	}
	return msg, nil
}

func (s *MessageService) ListMessages(ctx context.Context, actorID, itemID int64) ([]*models.Message, error) {
	if _, err := s.items.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.messages.ListMessages(ctx, itemID, actorID)
}

// Subscribe streams envelopes published on the item's channel from now on.
func (s *MessageService) Subscribe(ctx context.Context, itemID int64) (<-chan models.ChatEnvelope, func(), error) {
	if _, err := s.items.GetItem(ctx, itemID); err != nil {
		return nil, nil, err
	}
	return s.relay.Subscribe(ctx, itemID)
}
