package server

import (
	"github.com/go-logr/logr"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"interview-analyzer/internal/server/interceptors"
)

// GRPCDeps holds the dependencies of the gRPC server.
type GRPCDeps struct {
	Auth interceptors.Authenticator
	// Health is registered as the standard gRPC health service. If nil, a new server reporting SERVING is used.
	Health *health.Server
	Logger logr.Logger
	// Reflection registers the reflection service for grpcurl. Enable outside production only.
	Reflection bool
}

// publicMethods are reachable without a Bearer token.
var publicMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_Watch_FullMethodName: true,
}

// PublicMethods returns the full method names that skip authentication.
func PublicMethods() map[string]bool {
	out := make(map[string]bool, len(publicMethods))
	for k, v := range publicMethods {
		out[k] = v
	}
	return out
}

// NewGRPCServer returns a gRPC server with tracing, request logging and Bearer authentication
// installed, and the health service registered. Telemetry runs outermost so rejected calls are logged.
func NewGRPCServer(deps GRPCDeps, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.TelemetryUnary(deps.Logger, publicMethods),
			interceptors.AuthUnary(deps.Auth, publicMethods),
		),
		grpc.ChainStreamInterceptor(
			interceptors.AuthStream(deps.Auth, publicMethods),
		),
	}, opts...)
	s := grpc.NewServer(opts...)

	hs := deps.Health
	if hs == nil {
		hs = health.NewServer()
	}
	healthpb.RegisterHealthServer(s, hs)
	if deps.Reflection {
		reflection.Register(s)
	}
	return s
}
