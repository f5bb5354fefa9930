package api

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const requestIDMetadataKey = "x-request-id"

// LoggingUnaryInterceptor echoes or assigns a request id and logs each call
// with its status code.
func LoggingUnaryInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	log := grpcLogger(logger)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := requestIDFromMetadata(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, id))

		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(ctx, log, id, info.FullMethod, err, start)
		return resp, err
	}
}

func LoggingStreamInterceptor(logger *zerolog.Logger) grpc.StreamServerInterceptor {
	log := grpcLogger(logger)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		id := requestIDFromMetadata(ctx)
		_ = ss.SetHeader(metadata.Pairs(requestIDMetadataKey, id))

		start := time.Now()
		err := handler(srv, ss)
		logCall(ctx, log, id, info.FullMethod, err, start)
		return err
	}
}

func grpcLogger(logger *zerolog.Logger) zerolog.Logger {
	if logger == nil {
		return zerolog.Nop()
	}
	return logger.With().Str("component", "grpc").Logger()
}

func logCall(ctx context.Context, log zerolog.Logger, requestID, method string, err error, start time.Time) {
	code := status.Code(err)
	ev := log.Info()
	if code != codes.OK {
		ev = log.Warn().Err(err)
	}
	ev.Str("request_id", requestID).
		Str("method", method).
		Str("remote", remoteAddr(ctx)).
		Str("code", code.String()).
		Dur("duration", time.Since(start)).
		Msg("grpc request")
}

func requestIDFromMetadata(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if id := first(md.Get(requestIDMetadataKey)); id != "" {
			return id
		}
	}
	return uuid.NewString()
}
