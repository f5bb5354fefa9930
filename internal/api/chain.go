package api

import (
	"context"

	"google.golang.org/grpc"
)

// ChainUnaryInterceptors composes interceptors so that the first one sees the
// call first. grpc.ChainUnaryInterceptor does the same, this variant lets
// tests exercise the composed chain without a server.
func ChainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return unaryAt(interceptors, 0, info, handler)(ctx, req)
	}
}

func unaryAt(chain []grpc.UnaryServerInterceptor, i int, info *grpc.UnaryServerInfo, final grpc.UnaryHandler) grpc.UnaryHandler {
	if i == len(chain) {
		return final
	}
	return func(ctx context.Context, req any) (any, error) {
		return chain[i](ctx, req, info, unaryAt(chain, i+1, info, final))
	}
}

// ChainStreamInterceptors is the streaming counterpart of ChainUnaryInterceptors.
func ChainStreamInterceptors(interceptors ...grpc.StreamServerInterceptor) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return streamAt(interceptors, 0, info, handler)(srv, ss)
	}
}

func streamAt(chain []grpc.StreamServerInterceptor, i int, info *grpc.StreamServerInfo, final grpc.StreamHandler) grpc.StreamHandler {
	if i == len(chain) {
		return final
	}
	return func(srv any, ss grpc.ServerStream) error {
		return chain[i](srv, ss, info, streamAt(chain, i+1, info, final))
	}
}
