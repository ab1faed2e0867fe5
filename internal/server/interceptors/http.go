package interceptors

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"

	identityservice "interview-analyzer/internal/identity/service"
	"interview-analyzer/internal/server/httputil"
)

// BearerToken returns the Bearer credential of r, or "".
func BearerToken(r *http.Request) string {
	return parseBearer(r.Header.Get("Authorization"))
}

// AuthHTTP returns middleware that authenticates the Bearer credential and puts the principal in the
// request context. Missing, invalid, expired and revoked credentials all get the same 401.
func AuthHTTP(auth Authenticator, logger logr.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				httputil.WriteUnauthorized(w)
				return
			}
			p, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, identityservice.ErrRejected) {
					httputil.WriteUnauthorized(w)
					return
				}
				httputil.WriteServiceError(w, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// ClientIPHTTP returns middleware recording the caller's address for ClientIP. Forwarding headers are
// honored first, as they are for gRPC metadata.
func ClientIPHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := firstForwarded(r.Header.Get("X-Forwarded-For"))
		if ip == "" {
			ip = strings.TrimSpace(r.Header.Get("X-Real-IP"))
		}
		if ip == "" {
			ip = hostOnly(r.RemoteAddr)
		}
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ip)))
	})
}
