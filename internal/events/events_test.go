package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishJSON(t *testing.T) {
	bus := NewEventBus()

	var received []*Event
	bus.Subscribe("test_event", func(e *Event) error {
		received = append(received, e)
		return nil
	})

	require.NoError(t, bus.PublishJSON("test_event", map[string]string{"foo": "bar"}))
	require.NoError(t, bus.PublishJSON("test_event", map[string]string{"foo": "baz"}))

	require.Len(t, received, 2)
	assert.Equal(t, "test_event", received[0].Type)
	assert.False(t, received[0].CreatedAt.IsZero())
	assert.Less(t, received[0].Seq, received[1].Seq)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(received[0].Payload, &decoded))
	assert.Equal(t, "bar", decoded["foo"])
}

func TestEventBus_FanOut(t *testing.T) {
	bus := NewEventBus()
	var calls []string

	bus.Subscribe("event", func(*Event) error { calls = append(calls, "a"); return nil })
	bus.Subscribe("event", func(*Event) error { calls = append(calls, "b"); return nil })
	bus.Publish(&Event{Type: "event"})
	bus.Publish(&Event{Type: "unknown"})

	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestEventBus_NilAndEmpty(t *testing.T) {
	assert.NoError(t, NewEventBus().PublishJSON("unknown", nil))

	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON("unknown", nil))

	err := NewEventBus().PublishJSON("bad", make(chan int))
	assert.ErrorContains(t, err, "marshal bad payload")
}

func TestEventBus_HandlerFailuresIsolated(t *testing.T) {
	bus := NewEventBus()
	var reported []error
	var lastCalled bool

	bus.OnError(func(_ *Event, err error) { reported = append(reported, err) })
	bus.Subscribe(EventBookingCreated, func(*Event) error { return errors.New("telegram down") })
	bus.Subscribe(EventBookingCreated, func(*Event) error { panic("boom") })
	bus.Subscribe(EventBookingCreated, func(*Event) error { lastCalled = true; return nil })

	require.NoError(t, bus.PublishJSON(EventBookingCreated, BookingEventPayload{BookingID: 1}))

	require.Len(t, reported, 2)
	assert.EqualError(t, reported[0], "telegram down")
	assert.ErrorContains(t, reported[1], "boom")
	assert.True(t, lastCalled)
}

func TestSubscribeAll(t *testing.T) {
	bus := NewEventBus()
	seen := map[string]int{}
	bus.SubscribeAll(func(e *Event) error { seen[e.Type]++; return nil })

	for _, typ := range BookingEventTypes {
		bus.Publish(&Event{Type: typ})
	}
	bus.Publish(&Event{Type: "other"})

	assert.Len(t, seen, len(BookingEventTypes))
	assert.Zero(t, seen["other"])
	assert.True(t, IsBookingEvent(EventBookingUpdated))
	assert.False(t, IsBookingEvent("other"))
}

func TestDecodeBooking(t *testing.T) {
	price := int64(4500)
	event, err := NewJSONEvent(EventBookingConfirmed, BookingEventPayload{
		BookingID:       123,
		RenterID:        7,
		StartTime:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		TotalPriceCents: &price,
	})
	require.NoError(t, err)

	decoded, err := DecodeBooking(event)
	require.NoError(t, err)
	assert.Equal(t, int64(123), decoded.BookingID)
	assert.Equal(t, int64(7), decoded.RenterID)
	require.NotNil(t, decoded.TotalPriceCents)
	assert.Equal(t, int64(4500), *decoded.TotalPriceCents)

	_, err = DecodeBooking(&Event{Type: EventBookingCreated, Payload: []byte("{")})
	assert.ErrorContains(t, err, "decode booking_created payload")
}
