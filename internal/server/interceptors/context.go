package interceptors

import (
	"context"

	identityservice "interview-analyzer/internal/identity/service"
)

type contextKey struct{ name string }

var (
	userIDKey    = contextKey{"user_id"}
	sessionIDKey = contextKey{"session_id"}
	principalKey = contextKey{"principal"}
	clientIPKey  = contextKey{"client_ip"}
)

// WithIdentity returns a context with user_id and session_id set.
// Handlers read these via GetUserID and GetSessionID.
func WithIdentity(ctx context.Context, userID, sessionID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	return ctx
}

// WithPrincipal returns a context carrying p and its user and session ids.
func WithPrincipal(ctx context.Context, p *identityservice.Principal) context.Context {
	if p == nil || p.User == nil || p.Session == nil {
		return ctx
	}
	ctx = WithIdentity(ctx, p.User.ID, p.Session.ID)
	return context.WithValue(ctx, principalKey, p)
}

// GetUserID returns the user_id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok
}

// GetSessionID returns the session_id from context and true if set; otherwise "", false.
func GetSessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionIDKey).(string)
	return v, ok
}

// GetPrincipal returns the authenticated principal from context, or nil, false.
func GetPrincipal(ctx context.Context) (*identityservice.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*identityservice.Principal)
	return p, ok && p != nil
}

// WithClientIP records the caller's address for ClientIP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}
