package api

import (
	"context"
	"fmt"
	"net"
	"time"

	"renit/internal/config"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported for the booking API.
const ServiceName = "renit.booking"

const (
	probeTimeout       = 2 * time.Second
	defaultStopTimeout = 10 * time.Second
)

// GRPCServer serves the standard health protocol for orchestrators and
// internal clients, backed by a periodic store probe.
type GRPCServer struct {
	cfg      *config.APIConfig
	store    Pinger
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	log      zerolog.Logger
}

func NewGRPCServer(cfg *config.APIConfig, store Pinger, logger *zerolog.Logger) (*GRPCServer, error) {
	addr := fmt.Sprintf(":%d", cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}

	srv, err := newGRPCServer(cfg, store, lis, logger)
	if err != nil {
		_ = lis.Close()
		return nil, err
	}
	return srv, nil
}

func newGRPCServer(cfg *config.APIConfig, store Pinger, lis net.Listener, logger *zerolog.Logger) (*GRPCServer, error) {
	auth := NewAuthInterceptor(cfg)
	unary := ChainUnaryInterceptors(
		LoggingUnaryInterceptor(logger),
		auth.Unary(),
	)
	stream := ChainStreamInterceptors(
		LoggingStreamInterceptor(logger),
		auth.Stream(),
	)

	serverOpts := []grpc.ServerOption{
		grpc.UnaryInterceptor(unary),
		grpc.StreamInterceptor(stream),
	}
	creds, err := serverCredentials(cfg.GRPC.TLS)
	if err != nil {
		return nil, err
	}
	if creds != nil {
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}

	grpcServer := grpc.NewServer(serverOpts...)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	if cfg.GRPC.Reflection {
		reflection.Register(grpcServer)
	}

	s := &GRPCServer{
		cfg:      cfg,
		store:    store,
		server:   grpcServer,
		health:   healthServer,
		listener: lis,
		log:      grpcLogger(logger),
	}
	s.setServing(store == nil)
	return s, nil
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *GRPCServer) setServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Probe pings the store once and publishes the result as the serving status.
func (s *GRPCServer) Probe(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	err := s.store.Ping(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("store probe failed")
	}
	s.setServing(err == nil)
	return err
}

// RunProbes re-probes the store every interval until ctx is done.
func (s *GRPCServer) RunProbes(ctx context.Context, interval time.Duration) {
	_ = s.Probe(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Probe(ctx)
		}
	}
}

func (s *GRPCServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Bool("tls", s.cfg.GRPC.TLS.Enabled).Msg("gRPC health listening")
	return s.server.Serve(s.listener)
}

// Shutdown flips health to NOT_SERVING so balancers drain, then stops
// gracefully. Streams still open when ctx expires are cut off.
func (s *GRPCServer) Shutdown(ctx context.Context) {
	if s.server == nil {
		return
	}
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		s.server.GracefulStop()
	}()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultStopTimeout)
		defer cancel()
	}

	select {
	case <-stopped:
	case <-ctx.Done():
		s.log.Warn().Msg("gRPC graceful stop timed out, forcing")
		s.server.Stop()
		<-stopped
	}
}
