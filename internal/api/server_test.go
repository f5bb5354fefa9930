package api

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"renit/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakePinger struct {
	fail atomic.Bool
}

func (p *fakePinger) Ping(context.Context) error {
	if p.fail.Load() {
		return errors.New("db down")
	}
	return nil
}

func startBufServer(t *testing.T, cfg *config.APIConfig, store Pinger) (*GRPCServer, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	srv, err := newGRPCServer(cfg, store, lis, nil)
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return srv, healthpb.NewHealthClient(conn)
}

func TestGRPCServer_Health(t *testing.T) {
	store := &fakePinger{}
	srv, client := startBufServer(t, &config.APIConfig{}, store)
	ctx := context.Background()

	// not serving until the first probe
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	require.NoError(t, srv.Probe(ctx))
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	store.fail.Store(true)
	assert.Error(t, srv.Probe(ctx))
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	_, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "unknown"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPCServer_AuthEnforced(t *testing.T) {
	cfg := &config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{{Key: "k1", Extra: "e1", Permissions: []string{permReadHealth}}},
		},
	}
	_, client := startBufServer(t, cfg, nil)

	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "k1", "x-api-extra", "e1")
	var header metadata.MD
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{}, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
	assert.NotEmpty(t, header.Get(requestIDMetadataKey))
}

func TestBuildTLSConfig(t *testing.T) {
	_, err := buildTLSConfig(config.APITLSConfig{Enabled: true})
	assert.Error(t, err)

	_, err = buildTLSConfig(config.APITLSConfig{Enabled: true, CertFile: "missing.pem", KeyFile: "missing.key"})
	assert.ErrorContains(t, err, "load keypair")

	creds, err := serverCredentials(config.APITLSConfig{})
	assert.NoError(t, err)
	assert.Nil(t, creds)

	_, err = loadCertPool("")
	assert.Error(t, err)

	bogus := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(bogus, []byte("not a cert"), 0o600))
	_, err = loadCertPool(bogus)
	assert.ErrorContains(t, err, "no certificates")
}

func TestGRPCServer_ShutdownWithoutDeadline(t *testing.T) {
	srv, _ := startBufServer(t, &config.APIConfig{}, nil)
	done := make(chan struct{})
	go func() {
		srv.Shutdown(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not return")
	}
}
