package api

import (
	"context"
	"crypto/subtle"
	"strings"

	"renit/internal/config"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"

	permReadHealth = "read:health"
	permReflection = "read:reflection"

	clientKeyUnknown = "unknown"
)

// methodPermissions maps a gRPC method prefix to the permission it needs.
// Methods matching no prefix need none.
var methodPermissions = []struct {
	prefix string
	perm   string
}{
	{"/grpc.health.v1.Health/", permReadHealth},
	{"/grpc.reflection.", permReflection},
}

func requiredPermission(fullMethod string) string {
	for _, m := range methodPermissions {
		if strings.HasPrefix(fullMethod, m.prefix) {
			return m.perm
		}
	}
	return ""
}

type apiClient struct {
	extra []byte
	// nil means every permission
	perms map[string]struct{}
}

func (c apiClient) can(perm string) bool {
	if perm == "" || c.perms == nil {
		return true
	}
	_, ok := c.perms[perm]
	return ok
}

// AuthInterceptor guards the gRPC port with static API key pairs and a
// token bucket per client.
type AuthInterceptor struct {
	enabled     bool
	keyHeader   string
	extraHeader string
	clients     map[string]apiClient
	limiter     *rateLimiter
}

func NewAuthInterceptor(cfg *config.APIConfig) *AuthInterceptor {
	a := &AuthInterceptor{
		enabled:     cfg.Auth.Enabled,
		keyHeader:   headerName(cfg.Auth.HeaderAPIKey, apiKeyHeaderDefault),
		extraHeader: headerName(cfg.Auth.HeaderExtra, apiExtraHeaderDefault),
		clients:     make(map[string]apiClient, len(cfg.Auth.APIKeys)),
		limiter:     newRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	}
	for _, k := range cfg.Auth.APIKeys {
		c := apiClient{extra: []byte(k.Extra)}
		// empty permission list grants everything
		if len(k.Permissions) > 0 {
			c.perms = make(map[string]struct{}, len(k.Permissions))
			for _, p := range k.Permissions {
				c.perms[strings.TrimSpace(p)] = struct{}{}
			}
		}
		a.clients[k.Key] = c
	}
	return a
}

// gRPC metadata keys are lower-case.
func headerName(configured, fallback string) string {
	if h := strings.ToLower(strings.TrimSpace(configured)); h != "" {
		return h
	}
	return fallback
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := a.authorize(ctx, info.FullMethod); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func (a *AuthInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := a.authorize(ss.Context(), info.FullMethod); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

func (a *AuthInterceptor) authorize(ctx context.Context, fullMethod string) error {
	md, _ := metadata.FromIncomingContext(ctx)
	key := first(md.Get(a.keyHeader))

	if a.enabled {
		if md == nil {
			return status.Error(codes.Unauthenticated, "missing metadata")
		}
		if err := a.authenticate(key, first(md.Get(a.extraHeader)), fullMethod); err != nil {
			return err
		}
	}

	bucket := key
	if bucket == "" {
		bucket = remoteAddr(ctx)
	}
	if !a.limiter.allow(bucket) {
		return status.Error(codes.ResourceExhausted, "rate limit exceeded")
	}
	return nil
}

func (a *AuthInterceptor) authenticate(key, extra, fullMethod string) error {
	if key == "" || extra == "" {
		return status.Error(codes.Unauthenticated, "missing api key headers")
	}
	client, ok := a.clients[key]
	if !ok {
		return status.Error(codes.Unauthenticated, "invalid api key")
	}
	if subtle.ConstantTimeCompare(client.extra, []byte(extra)) != 1 {
		return status.Error(codes.Unauthenticated, "invalid extra header")
	}
	if !client.can(requiredPermission(fullMethod)) {
		return status.Error(codes.PermissionDenied, "permission denied")
	}
	return nil
}

func remoteAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return clientKeyUnknown
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
