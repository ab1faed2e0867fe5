package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"interview-analyzer/internal/audit"
	auditdomain "interview-analyzer/internal/audit/domain"
	identitydomain "interview-analyzer/internal/identity/domain"
	"interview-analyzer/internal/logutil"
	"interview-analyzer/internal/security"
	sessiondomain "interview-analyzer/internal/session/domain"
	sessionservice "interview-analyzer/internal/session/service"
	userdomain "interview-analyzer/internal/user/domain"
	userrepo "interview-analyzer/internal/user/repository"
)

// Sentinel errors for the auth gateway; handlers map them to transport status codes.
var (
	// ErrAuthenticationFailed is returned by Login when the identity assertion is invalid or unverified.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrRejected is returned for any post-login authorization failure. It never says which check failed.
	ErrRejected = errors.New("credential rejected")
)

const instrumentationName = "interview-analyzer/identity"

// Principal is the resolved identity of an authenticated request.
type Principal struct {
	User       *userdomain.User
	Session    *sessiondomain.Session
	Credential *security.Credential
}

// LoginResult holds the outcome of Login or Refresh.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *userdomain.User
	Session   *sessiondomain.Session
}

// AssertionVerifier is the minimal identity verifier needed by the auth service.
type AssertionVerifier interface {
	Verify(ctx context.Context, assertion string) (*identitydomain.Profile, error)
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	RecordLogin(ctx context.Context, id string, at time.Time, name, pictureURL string) error
}

// SessionStore is the minimal session store needed by the auth service.
type SessionStore interface {
	Create(ctx context.Context, userID string, ttl time.Duration) (*sessiondomain.Session, error)
	FindValid(ctx context.Context, id string) (*sessiondomain.Session, error)
	Renew(ctx context.Context, sess *sessiondomain.Session, ttl time.Duration) (*sessiondomain.Session, error)
	Invalidate(ctx context.Context, id string) error
	InvalidateAllForUser(ctx context.Context, userID string) (int64, error)
	ListActive(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
	Cleanup(ctx context.Context) (int64, error)
}

// TokenIssuer issues and structurally verifies bearer credentials.
type TokenIssuer interface {
	Issue(userID, sessionID string, claims security.DisplayClaims, ttl time.Duration) (string, time.Time, error)
	Verify(token string) (*security.Credential, error)
}

// Options configures session lifetimes.
type Options struct {
	// SessionTTL is the lifetime of new sessions and credentials, and the extension applied on renewal.
	SessionTTL time.Duration
	// RenewThreshold is the remaining session lifetime below which Authenticate renews the session.
	RenewThreshold time.Duration
}

// AuthService is the auth gateway: login, authenticate, refresh, logout and logout-all over
// the verifier, the user repository, the session store and the token issuer.
type AuthService struct {
	verifier AssertionVerifier
	users    UserRepo
	sessions SessionStore
	tokens   TokenIssuer
	audit    audit.AuditLogger
	opts     Options
	logger   logr.Logger
	nowF     func() time.Time

	tracer         trace.Tracer
	loginCount     metric.Int64Counter
	authCount      metric.Int64Counter
	renewCount     metric.Int64Counter
	cleanupDeleted metric.Int64Counter
}

// NewAuthService returns an AuthService with the given dependencies. auditLogger may be nil.
func NewAuthService(
	verifier AssertionVerifier,
	users UserRepo,
	sessions SessionStore,
	tokens TokenIssuer,
	auditLogger audit.AuditLogger,
	opts Options,
	logger logr.Logger,
) *AuthService {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.RenewThreshold < 0 || opts.RenewThreshold >= opts.SessionTTL {
		opts.RenewThreshold = 0
	}
	s := &AuthService{
		verifier: verifier,
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		audit:    auditLogger,
		opts:     opts,
		logger:   logger.WithName("auth"),
		nowF:     time.Now,
		tracer:   otel.Tracer(instrumentationName),
	}
	meter := otel.Meter(instrumentationName)
	s.loginCount = s.counter(meter, "auth.login", "Login attempts by outcome.")
	s.authCount = s.counter(meter, "auth.authenticate", "Authenticate calls by outcome.")
	s.renewCount = s.counter(meter, "session.renewals", "Sessions renewed by Authenticate or Refresh.")
	s.cleanupDeleted = s.counter(meter, "session.cleanup.deleted", "Stale sessions deleted by cleanup.")
	return s
}

func (s *AuthService) counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		s.logger.Error(err, "failed to create counter", "name", name)
		c, _ = noop.NewMeterProvider().Meter(instrumentationName).Int64Counter(name)
	}
	return c
}

// WithClock replaces the time source used for renewal decisions. Intended for tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now != nil {
		s.nowF = now
	}
	return s
}

func (s *AuthService) now() time.Time {
	return s.nowF().UTC()
}

func outcome(v string) metric.AddOption {
	return metric.WithAttributes(attribute.String("outcome", v))
}

func (s *AuthService) logEvent(ctx context.Context, action, userID, sessionID, metadata string) {
	if s.audit != nil {
		s.audit.LogEvent(ctx, action, userID, sessionID, metadata)
	}
}

// Login verifies the identity assertion, resolves or creates the user, creates a session and
// issues a credential referencing it.
func (s *AuthService) Login(ctx context.Context, assertion string) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	profile, err := s.verifier.Verify(ctx, assertion)
	if err != nil {
		s.loginCount.Add(ctx, 1, outcome("failed"))
		s.logEvent(ctx, auditdomain.ActionLoginFailure, "", "", err.Error())
		s.logger.V(1).Info("identity assertion rejected", "err", err.Error())
		span.SetStatus(codes.Error, "assertion rejected")
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}
	user, err := s.resolveUser(ctx, profile)
	if err != nil {
		s.loginCount.Add(ctx, 1, outcome("error"))
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve user")
		return nil, err
	}
	if !user.IsActive() {
		s.loginCount.Add(ctx, 1, outcome("failed"))
		s.logEvent(ctx, auditdomain.ActionLoginFailure, user.ID, "", "user disabled")
		span.SetStatus(codes.Error, "user disabled")
		return nil, ErrAuthenticationFailed
	}

	sess, err := s.sessions.Create(ctx, user.ID, s.opts.SessionTTL)
	if err != nil {
		s.loginCount.Add(ctx, 1, outcome("error"))
		span.RecordError(err)
		span.SetStatus(codes.Error, "create session")
		return nil, err
	}
	token, exp, err := s.tokens.Issue(user.ID, sess.ID, displayClaims(user), s.opts.SessionTTL)
	if err != nil {
		if invErr := s.sessions.Invalidate(ctx, sess.ID); invErr != nil {
			s.logger.Error(invErr, "failed to invalidate session after issue failure", "sessionID", sess.ID)
		}
		s.loginCount.Add(ctx, 1, outcome("error"))
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue credential")
		return nil, err
	}

	span.SetAttributes(attribute.String("user.id", user.ID), attribute.String("session.id", sess.ID))
	s.loginCount.Add(ctx, 1, outcome("success"))
	s.logEvent(ctx, auditdomain.ActionLogin, user.ID, sess.ID, string(profile.Provider))
	s.logger.Info("user logged in", "userID", user.ID, "sessionID", sess.ID)
	return &LoginResult{Token: token, ExpiresAt: exp, User: user, Session: sess}, nil
}

// resolveUser finds the user linked to profile or creates one. Existing users get their
// last-login time and display profile refreshed.
func (s *AuthService) resolveUser(ctx context.Context, profile *identitydomain.Profile) (*userdomain.User, error) {
	now := s.now()
	user, err := s.users.GetByExternalID(ctx, profile.ExternalID())
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = &userdomain.User{
			ID:          uuid.New().String(),
			ExternalID:  profile.ExternalID(),
			Email:       profile.Email,
			Name:        profile.Name,
			PictureURL:  profile.PictureURL,
			Status:      userdomain.UserStatusActive,
			LastLoginAt: &now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := user.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
		}
		err := s.users.Create(ctx, user)
		if err == nil {
			s.logger.Info("user created", "userID", user.ID, "provider", profile.Provider)
			return user, nil
		}
		if !errors.Is(err, userrepo.ErrDuplicate) {
			return nil, err
		}
		// Lost a race with a concurrent first login for the same subject.
		user, err = s.users.GetByExternalID(ctx, profile.ExternalID())
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, userrepo.ErrDuplicate
		}
	}
	if !user.IsActive() {
		return user, nil
	}
	if err := s.users.RecordLogin(ctx, user.ID, now, profile.Name, profile.PictureURL); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now
	if profile.Name != "" {
		user.Name = profile.Name
	}
	user.PictureURL = profile.PictureURL
	return user, nil
}

// Authenticate resolves a bearer credential to its user and session. Any failure of the credential,
// the session or the user is ErrRejected; storage failures propagate as-is. A session whose remaining
// lifetime is below the renewal threshold is renewed on a best-effort basis.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Principal, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Authenticate")
	defer span.End()

	p, err := s.resolve(ctx, token)
	if err != nil {
		if errors.Is(err, ErrRejected) {
			s.authCount.Add(ctx, 1, outcome("rejected"))
			span.SetStatus(codes.Error, "rejected")
		} else {
			s.authCount.Add(ctx, 1, outcome("error"))
			span.RecordError(err)
			span.SetStatus(codes.Error, "lookup failed")
		}
		return nil, err
	}
	p.Session = s.renewIfDue(ctx, p.Session)
	span.SetAttributes(attribute.String("user.id", p.User.ID), attribute.String("session.id", p.Session.ID))
	s.authCount.Add(ctx, 1, outcome("authorized"))
	return p, nil
}

// resolve is the two-step check: structural verification of the credential, then the
// authoritative session and user lookups.
func (s *AuthService) resolve(ctx context.Context, token string) (*Principal, error) {
	cred, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.V(1).Info("credential rejected", "reason", "invalid token")
		return nil, ErrRejected
	}
	sess, err := s.sessions.FindValid(ctx, cred.SessionID)
	if errors.Is(err, sessionservice.ErrNotFound) {
		s.logger.V(1).Info("credential rejected", "reason", "session invalid", "sessionID", cred.SessionID)
		return nil, ErrRejected
	}
	if err != nil {
		return nil, logutil.LogAndWrapErr(s.logger, "failed to look up session", err, "sessionID", cred.SessionID)
	}
	if sess.UserID != cred.UserID {
		s.logger.Info("credential rejected", "reason", "session owner mismatch", "sessionID", sess.ID)
		return nil, ErrRejected
	}
	user, err := s.users.GetByID(ctx, cred.UserID)
	if err != nil {
		return nil, logutil.LogAndWrapErr(s.logger, "failed to look up user", err, "userID", cred.UserID)
	}
	if !user.IsActive() {
		s.logger.V(1).Info("credential rejected", "reason", "user missing or disabled", "userID", cred.UserID)
		return nil, ErrRejected
	}
	return &Principal{User: user, Session: sess, Credential: cred}, nil
}

// renewIfDue extends sess when its remaining lifetime is below the renewal threshold. Renewal
// errors are logged and discarded; the original session is returned in that case.
func (s *AuthService) renewIfDue(ctx context.Context, sess *sessiondomain.Session) *sessiondomain.Session {
	if sess.RemainingLifetime(s.now()) >= s.opts.RenewThreshold {
		return sess
	}
	renewed, err := s.sessions.Renew(ctx, sess, s.opts.SessionTTL)
	if err != nil {
		s.logger.Error(err, "best-effort session renewal failed", "sessionID", sess.ID)
		return sess
	}
	s.renewCount.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", "authenticate")))
	s.logger.V(1).Info("session renewed", "sessionID", sess.ID, "expiresAt", renewed.ExpiresAt)
	return renewed
}

// Refresh authenticates token, extends its session to a full TTL and issues a new credential
// for the same session.
func (s *AuthService) Refresh(ctx context.Context, token string) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Refresh")
	defer span.End()

	p, err := s.resolve(ctx, token)
	if err != nil {
		span.SetStatus(codes.Error, "refresh failed")
		return nil, err
	}
	sess, err := s.sessions.Renew(ctx, p.Session, s.opts.SessionTTL)
	if errors.Is(err, sessionservice.ErrNotFound) {
		return nil, ErrRejected
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "renew")
		return nil, logutil.LogAndWrapErr(s.logger, "failed to renew session", err, "sessionID", p.Session.ID)
	}
	s.renewCount.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", "refresh")))
	newToken, exp, err := s.tokens.Issue(p.User.ID, sess.ID, displayClaims(p.User), s.opts.SessionTTL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue credential")
		return nil, err
	}
	s.logEvent(ctx, auditdomain.ActionRefresh, p.User.ID, sess.ID, "")
	return &LoginResult{Token: newToken, ExpiresAt: exp, User: p.User, Session: sess}, nil
}

// Logout invalidates the session referenced by token. It never fails: an unusable token or a storage
// error is logged and reported as false.
func (s *AuthService) Logout(ctx context.Context, token string) bool {
	ctx, span := s.tracer.Start(ctx, "AuthService.Logout")
	defer span.End()

	cred, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.V(1).Info("logout with unusable credential")
		return false
	}
	if err := s.sessions.Invalidate(ctx, cred.SessionID); err != nil {
		s.logger.Error(err, "logout failed to invalidate session", "sessionID", cred.SessionID)
		span.RecordError(err)
		return false
	}
	s.logEvent(ctx, auditdomain.ActionLogout, cred.UserID, cred.SessionID, "")
	return true
}

// LogoutAll invalidates every session owned by userID and returns how many were active.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.LogoutAll")
	defer span.End()

	n, err := s.sessions.InvalidateAllForUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalidate all")
		return 0, logutil.LogAndWrapErr(s.logger, "failed to invalidate user sessions", err, "userID", userID)
	}
	s.logEvent(ctx, auditdomain.ActionLogoutAll, userID, "", fmt.Sprintf("sessions=%d", n))
	s.logger.Info("all sessions invalidated", "userID", userID, "count", n)
	return n, nil
}

// Sessions returns userID's valid sessions, newest first, without secrets.
func (s *AuthService) Sessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error) {
	return s.sessions.ListActive(ctx, userID)
}

// Cleanup deletes stale sessions and records the count.
func (s *AuthService) Cleanup(ctx context.Context) (int64, error) {
	n, err := s.sessions.Cleanup(ctx)
	if n > 0 {
		s.cleanupDeleted.Add(ctx, n)
	}
	return n, err
}

func displayClaims(u *userdomain.User) security.DisplayClaims {
	return security.DisplayClaims{Name: u.Name, Email: u.Email}
}
