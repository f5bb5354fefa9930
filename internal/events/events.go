package events

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Booking lifecycle event types.
const (
	EventBookingCreated   = "booking_created"
	EventBookingUpdated   = "booking_updated"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCanceled  = "booking_canceled"
	EventBookingCompleted = "booking_completed"
)

// BookingEventTypes lists every booking lifecycle event in publish order.
var BookingEventTypes = []string{
	EventBookingCreated,
	EventBookingUpdated,
	EventBookingConfirmed,
	EventBookingCanceled,
	EventBookingCompleted,
}

// IsBookingEvent reports whether t is one of BookingEventTypes.
func IsBookingEvent(t string) bool {
	return slices.Contains(BookingEventTypes, t)
}

// Who triggered a lifecycle change.
const (
	ChangedByRenter  = "renter"
	ChangedByOwner   = "owner"
	ChangedByPayment = "payment"
	ChangedBySystem  = "system"
)

// BookingEventPayload is the booking snapshot carried by lifecycle events.
type BookingEventPayload struct {
	BookingID       int64     `json:"booking_id"`
	ItemID          int64     `json:"item_id"`
	ItemTitle       string    `json:"item_title,omitempty"`
	OwnerID         int64     `json:"owner_id,omitempty"`
	RenterID        int64     `json:"renter_id"`
	Status          string    `json:"status"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	TotalPriceCents *int64    `json:"total_price_cents,omitempty"`
	ChangedBy       string    `json:"changed_by,omitempty"`
	ChangedByID     int64     `json:"changed_by_id,omitempty"`
}

// Event is one published fact. Seq is assigned by the bus and grows
// monotonically per process.
type Event struct {
	Seq       uint64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

type EventHandler func(event *Event) error

// EventBus fans events out to in-process subscribers. Handlers run
// synchronously on the publisher's goroutine; a failing or panicking handler
// is reported via OnError and never stops the others.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]EventHandler
	onError     func(event *Event, err error)
	seq         atomic.Uint64
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

func (b *EventBus) OnError(fn func(event *Event, err error)) {
	b.mu.Lock()
	b.onError = fn
	b.mu.Unlock()
}

func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
	b.mu.Unlock()
}

// SubscribeAll registers the handler for every booking lifecycle event.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range BookingEventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := slices.Clone(b.subscribers[event.Type])
	onError := b.onError
	b.mu.RUnlock()

	event.Seq = b.seq.Add(1)
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, h := range handlers {
		if err := safeCall(h, event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

func safeCall(h EventHandler, event *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panic: %v", r)
		}
	}()
	return h(event)
}

// PublishJSON marshals payload and publishes it. A nil bus drops the event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}
	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	b.Publish(event)
	return nil
}

func NewJSONEvent(eventType string, payload interface{}) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}

// DecodeBooking unmarshals a booking lifecycle payload.
func DecodeBooking(event *Event) (BookingEventPayload, error) {
	var p BookingEventPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", event.Type, err)
	}
	return p, nil
}
