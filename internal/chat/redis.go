package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"renit/internal/metrics"
	"renit/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisRelay fans messages out across processes with Redis PUBLISH/SUBSCRIBE.
type RedisRelay struct {
	client *redis.Client
	buffer int
	logger *zerolog.Logger
}

func NewRedisRelay(client *redis.Client, buffer int, logger *zerolog.Logger) *RedisRelay {
	if buffer <= 0 {
		buffer = models.SubscriberBuffer
	}
	return &RedisRelay{client: client, buffer: buffer, logger: logger}
}

func channelName(itemID int64) string {
	return fmt.Sprintf("chat:item:%d", itemID)
}

func (r *RedisRelay) Publish(ctx context.Context, env models.ChatEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal chat envelope: %w", err)
	}
	if err := r.client.Publish(ctx, channelName(env.ItemID), data).Err(); err != nil {
		metrics.IncRelay("error")
		return fmt.Errorf("failed to publish chat message: %w", err)
	}
	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so every
// message published afterwards is delivered.
func (r *RedisRelay) Subscribe(ctx context.Context, itemID int64) (<-chan models.ChatEnvelope, func(), error) {
	pubsub := r.client.Subscribe(ctx, channelName(itemID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to chat channel: %w", err)
	}

	out := make(chan models.ChatEnvelope, r.buffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var env models.ChatEnvelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					if r.logger != nil {
						r.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("bad chat payload")
					}
					continue
				}
				select {
				case out <- env:
					metrics.IncRelay("delivered")
				default:
					metrics.IncRelay("dropped")
				}
			}
		}
	}()

	return out, cancel, nil
}
