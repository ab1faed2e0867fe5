// Package handler exposes the auth gateway over HTTP.
package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"

	identityservice "interview-analyzer/internal/identity/service"
	"interview-analyzer/internal/server/httputil"
	"interview-analyzer/internal/server/interceptors"
	sessiondomain "interview-analyzer/internal/session/domain"
	userdomain "interview-analyzer/internal/user/domain"
)

const maxLoginBody = 16 << 10

// AuthAPI is the subset of the auth gateway served over HTTP.
type AuthAPI interface {
	Login(ctx context.Context, assertion string) (*identityservice.LoginResult, error)
	Refresh(ctx context.Context, token string) (*identityservice.LoginResult, error)
	Logout(ctx context.Context, token string) bool
	LogoutAll(ctx context.Context, userID string) (int64, error)
	Sessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
}

// Server serves the /auth routes.
type Server struct {
	auth   AuthAPI
	logger logr.Logger
}

// NewServer returns a new auth HTTP server.
func NewServer(auth AuthAPI, logger logr.Logger) *Server {
	return &Server{auth: auth, logger: logger.WithName("auth-http")}
}

// RegisterPublic adds the routes that carry their own credential handling: login, refresh and logout.
func (s *Server) RegisterPublic(r *mux.Router) {
	r.HandleFunc("/auth/login", s.Login).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", s.Refresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", s.Logout).Methods(http.MethodPost)
}

// RegisterProtected adds the routes that require an authenticated principal in the request context.
func (s *Server) RegisterProtected(r *mux.Router) {
	r.HandleFunc("/auth/verify", s.Verify).Methods(http.MethodGet)
	r.HandleFunc("/auth/logout-all", s.LogoutAll).Methods(http.MethodPost)
	r.HandleFunc("/auth/sessions", s.Sessions).Methods(http.MethodGet)
}

type loginRequest struct {
	Assertion string `json:"assertion"`
}

type userResponse struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name,omitempty"`
	PictureURL string     `json:"picture_url,omitempty"`
	LastLogin  *time.Time `json:"last_login_at,omitempty"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Current   bool      `json:"current,omitempty"`
}

type tokenResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      userResponse    `json:"user"`
	Session   sessionResponse `json:"session"`
}

func toUser(u *userdomain.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, PictureURL: u.PictureURL, LastLogin: u.LastLoginAt}
}

func toSession(sess *sessiondomain.Session, currentID string) sessionResponse {
	return sessionResponse{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
		Current:   sess.ID == currentID,
	}
}

func toToken(res *identityservice.LoginResult) tokenResponse {
	return tokenResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      toUser(res.User),
		Session:   toSession(res.Session, ""),
	}
}

// Login exchanges an identity assertion for a session credential.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.DecodeJSON(w, r, maxLoginBody, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, httputil.CodeBadRequest, "invalid request body")
		return
	}
	req.Assertion = strings.TrimSpace(req.Assertion)
	if req.Assertion == "" {
		httputil.WriteError(w, http.StatusBadRequest, httputil.CodeBadRequest, "assertion is required")
		return
	}
	res, err := s.auth.Login(r.Context(), req.Assertion)
	if err != nil {
		httputil.WriteServiceError(w, s.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toToken(res))
}

// Refresh issues a new credential for the caller's session and extends it to a full lifetime.
func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	token := interceptors.BearerToken(r)
	if token == "" {
		httputil.WriteUnauthorized(w)
		return
	}
	res, err := s.auth.Refresh(r.Context(), token)
	if err != nil {
		httputil.WriteServiceError(w, s.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toToken(res))
}

// Logout invalidates the caller's session. It always answers 200.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if token := interceptors.BearerToken(r); token != "" {
		s.auth.Logout(r.Context(), token)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Verify returns the authenticated user and session.
func (s *Server) Verify(w http.ResponseWriter, r *http.Request) {
	p, ok := interceptors.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"user":    toUser(p.User),
		"session": toSession(p.Session, p.Session.ID),
	})
}

// LogoutAll invalidates every session of the authenticated user, including the current one.
func (s *Server) LogoutAll(w http.ResponseWriter, r *http.Request) {
	p, ok := interceptors.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w)
		return
	}
	n, err := s.auth.LogoutAll(r.Context(), p.User.ID)
	if err != nil {
		httputil.WriteServiceError(w, s.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "revoked": n})
}

// Sessions lists the authenticated user's active sessions and marks the current one.
func (s *Server) Sessions(w http.ResponseWriter, r *http.Request) {
	p, ok := interceptors.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w)
		return
	}
	list, err := s.auth.Sessions(r.Context(), p.User.ID)
	if err != nil {
		httputil.WriteServiceError(w, s.logger, err)
		return
	}
	out := make([]sessionResponse, 0, len(list))
	for _, sess := range list {
		out = append(out, toSession(sess, p.Session.ID))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sessions": out})
}
