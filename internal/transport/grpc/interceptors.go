package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"chronobook/backend/internal/identity"
)

type tokenVerifier interface {
	Verify(token string) (identity.Actor, error)
}

// AuthInterceptor resolves the caller from the "authorization" metadata and rejects
// unauthenticated calls.
func AuthInterceptor(v tokenVerifier, log *slog.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "grpc.auth"))

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				header = values[0]
			}
		}
		token, err := identity.BearerToken(header)
		if err != nil {
			log.Info("unauthenticated call", slog.String("method", info.FullMethod))
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		actor, err := v.Verify(token)
		if err != nil {
			log.Info("token rejected", slog.String("method", info.FullMethod), slog.Any("err", err))
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		return handler(identity.WithActor(ctx, actor), req)
	}
}

func RequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}
