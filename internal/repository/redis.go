package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"renit/internal/config"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "renit:rate_limit"

// INCR and the first PEXPIRE run as one script so a crash between them can
// never leave a counter without a TTL.
var fixedWindowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// NewRedisClient builds a client from the redis section. Dial and IO
// timeouts are kept short because callers fall back to memory on error.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// RedisRateLimiter counts writes per user in fixed windows shared by every
// API process.
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, prefix: rateLimitPrefix}
}

func (r *RedisRateLimiter) key(userID int64) string {
	return fmt.Sprintf("%s:%d", r.prefix, userID)
}

func (r *RedisRateLimiter) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, errors.New("redis client is nil")
	}

	count, err := fixedWindowScript.Run(ctx, r.client, []string{r.key(userID)}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit window: %w", err)
	}
	return count <= int64(limit), nil
}
