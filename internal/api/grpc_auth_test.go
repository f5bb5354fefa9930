package api

import (
	"context"
	"fmt"
	"testing"
	"time"

	"renit/internal/config"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const healthCheckMethod = "/grpc.health.v1.Health/Check"

func TestAuthInterceptor(t *testing.T) {
	cfg := config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Name: "probe", Key: "probe-key", Extra: "probe-extra", Permissions: []string{permReadHealth}},
				{Name: "ops", Key: "ops-key", Extra: "ops-extra"},
			},
		},
		RateLimit: config.APIRateLimitConfig{RPS: 100, Burst: 200},
	}
	interceptor := NewAuthInterceptor(&cfg).Unary()
	handler := func(context.Context, any) (any, error) { return "ok", nil }
	const reflectMethod = "/grpc.reflection.v1.ServerReflection/ServerReflectionInfo"

	withMD := func(kv ...string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.Pairs(kv...))
	}

	tests := []struct {
		name   string
		ctx    context.Context
		method string
		want   codes.Code
	}{
		{"health with scoped key", withMD("x-api-key", "probe-key", "x-api-extra", "probe-extra"), healthCheckMethod, codes.OK},
		{"no metadata", context.Background(), healthCheckMethod, codes.Unauthenticated},
		{"empty metadata", withMD(), healthCheckMethod, codes.Unauthenticated},
		{"unknown key", withMD("x-api-key", "nope", "x-api-extra", "probe-extra"), healthCheckMethod, codes.Unauthenticated},
		{"wrong extra", withMD("x-api-key", "probe-key", "x-api-extra", "nope"), healthCheckMethod, codes.Unauthenticated},
		{"scoped key on reflection", withMD("x-api-key", "probe-key", "x-api-extra", "probe-extra"), reflectMethod, codes.PermissionDenied},
		{"unscoped key on reflection", withMD("x-api-key", "ops-key", "x-api-extra", "ops-extra"), reflectMethod, codes.OK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := interceptor(tt.ctx, "req", &grpc.UnaryServerInfo{FullMethod: tt.method}, handler)
			assert.Equal(t, tt.want, status.Code(err))
			if tt.want == codes.OK {
				assert.Equal(t, "ok", resp)
			}
		})
	}
}

func TestAuthInterceptor_RateLimitPerKey(t *testing.T) {
	cfg := config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 1, Burst: 1}}
	interceptor := NewAuthInterceptor(&cfg).Unary()
	info := &grpc.UnaryServerInfo{FullMethod: healthCheckMethod}
	handler := func(context.Context, any) (any, error) { return "ok", nil }

	key1 := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "key1"))
	_, err := interceptor(key1, "req", info, handler)
	assert.NoError(t, err)
	_, err = interceptor(key1, "req", info, handler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	// another key gets its own bucket
	key2 := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "key2"))
	_, err = interceptor(key2, "req", info, handler)
	assert.NoError(t, err)
}

func TestLoggingUnaryInterceptor(t *testing.T) {
	interceptor := LoggingUnaryInterceptor(nil)
	handler := func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: healthCheckMethod}

	resp, err := interceptor(context.Background(), "req", info, handler)
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestRequiredPermission(t *testing.T) {
	assert.Equal(t, permReadHealth, requiredPermission(healthCheckMethod))
	assert.Equal(t, permReadHealth, requiredPermission("/grpc.health.v1.Health/Watch"))
	assert.Equal(t, permReflection, requiredPermission("/grpc.reflection.v1alpha.ServerReflection/ServerReflectionInfo"))
	assert.Equal(t, "", requiredPermission("/unknown.Service/Method"))
}

func TestRequestIDFromMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDMetadataKey, "abc"))
	assert.Equal(t, "abc", requestIDFromMetadata(ctx))
	assert.NotEmpty(t, requestIDFromMetadata(context.Background()))
}

func TestChainUnaryInterceptors(t *testing.T) {
	var order []string
	mk := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			order = append(order, name)
			return handler(ctx, req)
		}
	}

	chain := ChainUnaryInterceptors(mk("first"), mk("second"))
	resp, err := chain(context.Background(), "req", &grpc.UnaryServerInfo{}, func(context.Context, any) (any, error) {
		order = append(order, "handler")
		return "ok", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *fakeServerStream) Context() context.Context { return s.ctx }

func TestChainStreamInterceptors(t *testing.T) {
	var order []string
	mk := func(name string) grpc.StreamServerInterceptor {
		return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
			order = append(order, name)
			return handler(srv, ss)
		}
	}

	chain := ChainStreamInterceptors(mk("first"), mk("second"))
	err := chain(nil, &fakeServerStream{ctx: context.Background()}, &grpc.StreamServerInfo{}, func(any, grpc.ServerStream) error {
		order = append(order, "handler")
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "handler"}, order)

	assert.NoError(t, ChainStreamInterceptors()(nil, nil, &grpc.StreamServerInfo{}, func(any, grpc.ServerStream) error { return nil }))
}

func TestAPIClientCan(t *testing.T) {
	open := apiClient{}
	assert.True(t, open.can(permReflection))

	scoped := apiClient{perms: map[string]struct{}{permReadHealth: {}}}
	assert.True(t, scoped.can(""))
	assert.True(t, scoped.can(permReadHealth))
	assert.False(t, scoped.can(permReflection))
}

func TestHeaderName(t *testing.T) {
	assert.Equal(t, "x-custom", headerName(" X-Custom ", apiKeyHeaderDefault))
	assert.Equal(t, apiKeyHeaderDefault, headerName("", apiKeyHeaderDefault))
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	l := newRateLimiter(1, 1)
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))

	now = now.Add(bucketIdleTTL + time.Second)
	for i := 0; i < bucketSweepMin; i++ {
		l.allow(fmt.Sprintf("k%d", i))
	}
	l.mu.Lock()
	_, kept := l.buckets["a"]
	l.mu.Unlock()
	assert.False(t, kept)

	var nilLimiter *rateLimiter
	assert.True(t, nilLimiter.allow("x"))
	assert.True(t, newRateLimiter(0, 0).allow("x"))
}
