// Package chat delivers persisted chat messages to live subscribers of an
// item's conversation. Delivery is best-effort: slow subscribers drop messages
// rather than stall the sender.
package chat

import (
	"context"
	"sync"

	"renit/internal/metrics"
	"renit/internal/models"
)

type subscriber struct {
	ch   chan models.ChatEnvelope
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// MemoryRelay fans messages out inside a single process.
type MemoryRelay struct {
	mu     sync.RWMutex
	subs   map[int64]map[*subscriber]struct{}
	buffer int
}

func NewMemoryRelay(buffer int) *MemoryRelay {
	if buffer <= 0 {
		buffer = models.SubscriberBuffer
	}
	return &MemoryRelay{subs: make(map[int64]map[*subscriber]struct{}), buffer: buffer}
}

// Publish notifies the subscribers present at call time.
func (r *MemoryRelay) Publish(_ context.Context, env models.ChatEnvelope) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for sub := range r.subs[env.ItemID] {
		select {
		case sub.ch <- env:
			metrics.IncRelay("delivered")
		default:
			metrics.IncRelay("dropped")
		}
	}
	return nil
}

// Subscribe registers a listener on the item's channel. The returned cancel
// func is idempotent; cancelling ctx has the same effect.
func (r *MemoryRelay) Subscribe(ctx context.Context, itemID int64) (<-chan models.ChatEnvelope, func(), error) {
	sub := &subscriber{ch: make(chan models.ChatEnvelope, r.buffer)}

	r.mu.Lock()
	if r.subs[itemID] == nil {
		r.subs[itemID] = make(map[*subscriber]struct{})
	}
	r.subs[itemID][sub] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			r.mu.Lock()
			delete(r.subs[itemID], sub)
			if len(r.subs[itemID]) == 0 {
				delete(r.subs, itemID)
			}
			r.mu.Unlock()
			sub.close()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	return sub.ch, cancel, nil
}

// Subscribers returns the number of live listeners on an item.
func (r *MemoryRelay) Subscribers(itemID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[itemID])
}
