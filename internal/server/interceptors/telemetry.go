package interceptors

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// TelemetryUnary returns a unary server interceptor that logs one structured record per RPC with
// its status code, duration and caller address. skipMethods is the set of full method names not to log
// (e.g. health checks).
func TelemetryUnary(logger logr.Logger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	logger = logger.WithName("grpc")
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if skipMethods[info.FullMethod] {
			return resp, err
		}
		logger.Info("grpc.request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", ClientIP(ctx),
		)
		return resp, err
	}
}
