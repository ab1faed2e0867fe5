package interceptors

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	identityservice "interview-analyzer/internal/identity/service"
)

const bearerPrefix = "bearer "

// Authenticator resolves a bearer credential to a principal. *identityservice.AuthService implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*identityservice.Principal, error)
}

var (
	errUnauthenticated = status.Error(codes.Unauthenticated, "missing or invalid authorization")
	errAuthUnavailable = status.Error(codes.Unavailable, "authentication temporarily unavailable")
)

// AuthUnary returns a unary server interceptor that authenticates the Bearer credential from gRPC
// metadata and sets the principal, user_id and session_id in context for protected RPCs.
// publicMethods is the set of full method names that do not require a Bearer token
// (e.g. the standard health service).
func AuthUnary(auth Authenticator, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx, err := authenticate(ctx, auth, publicMethods[info.FullMethod])
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// AuthStream is AuthUnary for streaming RPCs.
func AuthStream(auth Authenticator, publicMethods map[string]bool) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := authenticate(ss.Context(), auth, publicMethods[info.FullMethod])
		if err != nil {
			return err
		}
		return handler(srv, &identityStream{ServerStream: ss, ctx: ctx})
	}
}

// authenticate returns ctx with the caller's identity. Public methods proceed anonymously when the
// credential is missing or unusable; protected methods fail with Unauthenticated, or Unavailable
// when the session store cannot answer.
func authenticate(ctx context.Context, auth Authenticator, public bool) (context.Context, error) {
	token := extractBearer(ctx)
	if token == "" {
		if public {
			return ctx, nil
		}
		return nil, errUnauthenticated
	}
	p, err := auth.Authenticate(ctx, token)
	if err != nil {
		if public {
			return ctx, nil
		}
		if errors.Is(err, identityservice.ErrRejected) {
			return nil, errUnauthenticated
		}
		return nil, errAuthUnavailable
	}
	return WithPrincipal(ctx, p), nil
}

type identityStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityStream) Context() context.Context { return s.ctx }

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	return parseBearer(vals[0])
}

// parseBearer extracts the token from an Authorization value. The scheme is case-insensitive.
func parseBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
