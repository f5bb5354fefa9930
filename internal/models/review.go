package models

import "time"

type Review struct {
	ID         int64     `json:"id"`
	ItemID     int64     `json:"item_id"`
	ReviewerID int64     `json:"reviewer_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

// Message is an append-only chat line on an item's conversation.
type Message struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	ItemID     int64     `json:"item_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"timestamp"`
}

// ChatEnvelope is what the relay delivers to live subscribers of an item's channel.
type ChatEnvelope struct {
	MessageID  int64     `json:"message_id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	ItemID     int64     `json:"item_id"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

func (m *Message) Envelope() ChatEnvelope {
	return ChatEnvelope{
		MessageID:  m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		ItemID:     m.ItemID,
		Content:    m.Content,
		Timestamp:  m.CreatedAt,
	}
}
