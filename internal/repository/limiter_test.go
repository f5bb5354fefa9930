package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRedisRateLimiter(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	limiter := NewRedisRateLimiter(client)
	ctx := context.Background()

	t.Run("RateLimit", func(t *testing.T) {
		userID := int64(789)
		limit := 2
		window := time.Second

		allowed, err := limiter.CheckRateLimit(ctx, userID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = limiter.CheckRateLimit(ctx, userID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		// Third request (exceeds limit)
		allowed, err = limiter.CheckRateLimit(ctx, userID, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.True(t, s.Exists("renit:rate_limit:789"))
		assert.Positive(t, s.TTL("renit:rate_limit:789"))

		s.FastForward(window + time.Millisecond)

		allowed, err = limiter.CheckRateLimit(ctx, userID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		_, err := NewRedisRateLimiter(nil).CheckRateLimit(ctx, 1, 1, time.Second)
		assert.ErrorContains(t, err, "redis client is nil")
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})

	t.Run("PingDown", func(t *testing.T) {
		down := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
		defer down.Close()
		assert.ErrorContains(t, Ping(ctx, down), "redis ping")
	})
}

func TestMemoryRateLimiter(t *testing.T) {
	limiter := NewMemoryRateLimiter()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	allowed, _ := limiter.CheckRateLimit(ctx, 1, 2, time.Second)
	assert.True(t, allowed)
	allowed, _ = limiter.CheckRateLimit(ctx, 1, 2, time.Second)
	assert.True(t, allowed)
	allowed, _ = limiter.CheckRateLimit(ctx, 1, 2, time.Second)
	assert.False(t, allowed)

	allowed, _ = limiter.CheckRateLimit(ctx, 2, 2, time.Second)
	assert.True(t, allowed, "limits are per user")

	now = now.Add(2 * time.Second)
	allowed, _ = limiter.CheckRateLimit(ctx, 1, 2, time.Second)
	assert.True(t, allowed)

	assert.Equal(t, 1, limiter.Sweep())
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, userID, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverRateLimiter(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	primary := new(mockLimiter)
	fallback := new(mockLimiter)
	limiter := NewFailoverRateLimiter(primary, fallback, &logger)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	primary.On("CheckRateLimit", ctx, int64(1), 5, time.Minute).Return(true, nil).Once()
	allowed, err := limiter.CheckRateLimit(ctx, 1, 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	primary.On("CheckRateLimit", ctx, int64(1), 5, time.Minute).Return(false, errors.New("connection refused")).Once()
	fallback.On("CheckRateLimit", ctx, int64(1), 5, time.Minute).Return(true, nil).Twice()

	allowed, err = limiter.CheckRateLimit(ctx, 1, 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.True(t, limiter.Degraded())

	// primary not retried inside the recheck window
	allowed, err = limiter.CheckRateLimit(ctx, 1, 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	now = now.Add(2 * time.Minute)
	primary.On("CheckRateLimit", ctx, int64(1), 5, time.Minute).Return(false, nil).Once()
	allowed, err = limiter.CheckRateLimit(ctx, 1, 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.False(t, limiter.Degraded())

	primary.AssertExpectations(t)
	fallback.AssertExpectations(t)
}
