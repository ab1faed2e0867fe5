package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditdomain "interview-analyzer/internal/audit/domain"
	identitydomain "interview-analyzer/internal/identity/domain"
	"interview-analyzer/internal/identity/verifier"
	"interview-analyzer/internal/security"
	sessiondomain "interview-analyzer/internal/session/domain"
	sessionrepo "interview-analyzer/internal/session/repository"
	sessionservice "interview-analyzer/internal/session/service"
	userdomain "interview-analyzer/internal/user/domain"
	userrepo "interview-analyzer/internal/user/repository"
)

const (
	testIdentitySecret = "test-identity-secret"
	testIssuer         = "https://idp.test"
	testAudience       = "interview-analyzer-client"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordedEvent struct {
	action, userID, sessionID string
}

type memAuditLogger struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (l *memAuditLogger) LogEvent(ctx context.Context, action, userID, sessionID, metadata string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, recordedEvent{action, userID, sessionID})
}

func (l *memAuditLogger) actions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	for i, e := range l.events {
		out[i] = e.action
	}
	return out
}

// flakySessions wraps a real store and injects failures into selected operations.
type flakySessions struct {
	SessionStore
	renewErr     error
	findErr      error
	invalidateEr error
}

func (f *flakySessions) Renew(ctx context.Context, sess *sessiondomain.Session, ttl time.Duration) (*sessiondomain.Session, error) {
	if f.renewErr != nil {
		return nil, f.renewErr
	}
	return f.SessionStore.Renew(ctx, sess, ttl)
}

func (f *flakySessions) FindValid(ctx context.Context, id string) (*sessiondomain.Session, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.SessionStore.FindValid(ctx, id)
}

func (f *flakySessions) Invalidate(ctx context.Context, id string) error {
	if f.invalidateEr != nil {
		return f.invalidateEr
	}
	return f.SessionStore.Invalidate(ctx, id)
}

type harness struct {
	svc      *AuthService
	clock    *clock
	users    *userrepo.MemoryRepository
	sessions *flakySessions
	repo     *sessionrepo.MemoryRepository
	audit    *memAuditLogger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := &clock{t: time.Now().UTC()}
	repo := sessionrepo.NewMemoryRepository()
	store := sessionservice.NewStore(repo, 0, logr.Discard()).WithClock(clk.Now)
	sessions := &flakySessions{SessionStore: store}
	users := userrepo.NewMemoryRepository()
	tokens := security.NewTestTokenService().WithClock(clk.Now)
	v, err := verifier.NewHMACVerifier([]byte(testIdentitySecret), testIssuer, testAudience, identitydomain.IdentityProviderGoogle)
	require.NoError(t, err)
	al := &memAuditLogger{}
	svc := NewAuthService(v, users, sessions, tokens, al, Options{
		SessionTTL:     24 * time.Hour,
		RenewThreshold: 2 * time.Hour,
	}, logr.Discard()).WithClock(clk.Now)
	return &harness{svc: svc, clock: clk, users: users, sessions: sessions, repo: repo, audit: al}
}

func assertionFor(t *testing.T, subject, email string, verified bool) string {
	t.Helper()
	a, err := verifier.SignAssertion([]byte(testIdentitySecret), testIssuer, testAudience, identitydomain.Profile{
		Subject:       subject,
		Email:         email,
		EmailVerified: verified,
		Name:          "Test " + subject,
	}, time.Hour)
	require.NoError(t, err)
	return a
}

func TestAuthService_EndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.Login(ctx, assertionFor(t, "u-1", "ada@example.com", true))
	require.NoError(t, err)
	require.NotEmpty(t, first.Token)
	assert.Equal(t, "ada@example.com", first.User.Email)
	assert.Equal(t, h.clock.Now().Add(24*time.Hour), first.Session.ExpiresAt)
	originalExpiry := first.Session.ExpiresAt

	h.clock.Advance(time.Hour)
	p, err := h.svc.Authenticate(ctx, first.Token)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, p.User.ID)
	assert.Equal(t, first.Session.ID, p.Session.ID)
	assert.Equal(t, originalExpiry, p.Session.ExpiresAt, "no renewal above the threshold")

	n, err := h.svc.LogoutAll(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = h.svc.Authenticate(ctx, first.Token)
	assert.ErrorIs(t, err, ErrRejected)

	second, err := h.svc.Login(ctx, assertionFor(t, "u-1", "ada@example.com", true))
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID, "repeat login resolves the same user")
	assert.NotEqual(t, first.Session.ID, second.Session.ID)

	p, err = h.svc.Authenticate(ctx, second.Token)
	require.NoError(t, err)
	assert.Equal(t, second.Session.ID, p.Session.ID)

	assert.Equal(t, []string{
		auditdomain.ActionLogin,
		auditdomain.ActionLogoutAll,
		auditdomain.ActionLogin,
	}, h.audit.actions())
}

func TestAuthService_OpportunisticRenewal(t *testing.T) {
	testCases := []struct {
		name      string
		advance   time.Duration
		wantRenew bool
	}{
		{"well above threshold", time.Hour, false},
		{"exactly at threshold", 22 * time.Hour, false},
		{"below threshold", 22*time.Hour + 30*time.Minute, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			res, err := h.svc.Login(ctx, assertionFor(t, "u-renew", "r@example.com", true))
			require.NoError(t, err)

			h.clock.Advance(tc.advance)
			p, err := h.svc.Authenticate(ctx, res.Token)
			require.NoError(t, err)

			stored, err := h.repo.GetByID(ctx, res.Session.ID)
			require.NoError(t, err)
			if tc.wantRenew {
				want := h.clock.Now().Add(24 * time.Hour)
				assert.Equal(t, want, p.Session.ExpiresAt)
				assert.Equal(t, want, stored.ExpiresAt)
			} else {
				assert.Equal(t, res.Session.ExpiresAt, p.Session.ExpiresAt)
				assert.Equal(t, res.Session.ExpiresAt, stored.ExpiresAt)
			}
		})
	}
}

func TestAuthService_RenewalFailureIsSwallowed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, err := h.svc.Login(ctx, assertionFor(t, "u-2", "b@example.com", true))
	require.NoError(t, err)

	h.sessions.renewErr = sessionrepo.ErrStorageUnavailable
	h.clock.Advance(23 * time.Hour)
	p, err := h.svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Session.ExpiresAt, p.Session.ExpiresAt)
}

func TestAuthService_SessionLookupErrorPropagates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, err := h.svc.Login(ctx, assertionFor(t, "u-3", "c@example.com", true))
	require.NoError(t, err)

	h.sessions.findErr = sessionrepo.ErrStorageUnavailable
	_, err = h.svc.Authenticate(ctx, res.Token)
	require.Error(t, err)
	assert.ErrorIs(t, err, sessionrepo.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, ErrRejected)
}

func TestAuthService_RevocationPropagation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, err := h.svc.Login(ctx, assertionFor(t, "u-4", "d@example.com", true))
	require.NoError(t, err)
	_, err = h.svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)

	assert.True(t, h.svc.Logout(ctx, res.Token))
	_, err = h.svc.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, ErrRejected)

	// Logging out again with the same credential still succeeds from the caller's view.
	assert.True(t, h.svc.Logout(ctx, res.Token))
}

func TestAuthService_RejectsUniformly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, err := h.svc.Login(ctx, assertionFor(t, "u-5", "e@example.com", true))
	require.NoError(t, err)

	expired, err := h.svc.Login(ctx, assertionFor(t, "u-6", "f@example.com", true))
	require.NoError(t, err)

	disabled, err := h.svc.Login(ctx, assertionFor(t, "u-7", "g@example.com", true))
	require.NoError(t, err)
	require.NoError(t, h.users.SetStatus(ctx, disabled.User.ID, userdomain.UserStatusDisabled))

	forger, err := security.NewHMACTokenService([]byte("not-our-secret"), "test-issuer", "test-audience")
	require.NoError(t, err)
	forged, _, err := forger.Issue(res.User.ID, res.Session.ID, security.DisplayClaims{}, time.Hour)
	require.NoError(t, err)

	// A token for a real user that points at another user's session.
	crossed, _, err := security.NewTestTokenService().WithClock(h.clock.Now).
		Issue(res.User.ID, disabled.Session.ID, security.DisplayClaims{}, time.Hour)
	require.NoError(t, err)

	_, err = h.repo.Extend(ctx, expired.Session.ID, h.clock.Now().Add(-time.Second))
	require.NoError(t, err)

	testCases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"forged signature", forged},
		{"expired session", expired.Token},
		{"disabled user", disabled.Token},
		{"session owned by another user", crossed},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.Authenticate(ctx, tc.token)
			assert.True(t, errors.Is(err, ErrRejected), "got %v", err)
			assert.Equal(t, ErrRejected.Error(), err.Error())
		})
	}
}

func TestAuthService_LoginFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Login(ctx, assertionFor(t, "u-8", "h@example.com", false))
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.ErrorIs(t, err, verifier.ErrEmailNotVerified)

	_, err = h.svc.Login(ctx, "garbage")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	res, err := h.svc.Login(ctx, assertionFor(t, "u-9", "i@example.com", true))
	require.NoError(t, err)
	require.NoError(t, h.users.SetStatus(ctx, res.User.ID, userdomain.UserStatusDisabled))
	_, err = h.svc.Login(ctx, assertionFor(t, "u-9", "i@example.com", true))
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	assert.Contains(t, h.audit.actions(), auditdomain.ActionLoginFailure)
	sessions, err := h.repo.ListByUser(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1, "failed logins create no sessions")
}

func TestAuthService_LoginUpdatesProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, err := h.svc.Login(ctx, assertionFor(t, "u-10", "j@example.com", true))
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	_, err = h.svc.Login(ctx, assertionFor(t, "u-10", "j@example.com", true))
	require.NoError(t, err)

	u, err := h.users.GetByID(ctx, res.User.ID)
	require.NoError(t, err)
	require.NotNil(t, u.LastLoginAt)
	assert.Equal(t, h.clock.Now(), u.LastLoginAt.UTC())
	assert.Equal(t, "Test u-10", u.Name)
}

func TestAuthService_Refresh(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, err := h.svc.Login(ctx, assertionFor(t, "u-11", "k@example.com", true))
	require.NoError(t, err)

	h.clock.Advance(10 * time.Hour)
	refreshed, err := h.svc.Refresh(ctx, res.Token)
	require.NoError(t, err)
	assert.NotEqual(t, res.Token, refreshed.Token)
	assert.Equal(t, res.Session.ID, refreshed.Session.ID, "refresh keeps the session")
	assert.Equal(t, h.clock.Now().Add(24*time.Hour), refreshed.Session.ExpiresAt)

	// Both credentials reference the same live session.
	_, err = h.svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	_, err = h.svc.Authenticate(ctx, refreshed.Token)
	require.NoError(t, err)

	h.svc.Logout(ctx, refreshed.Token)
	_, err = h.svc.Refresh(ctx, res.Token)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestAuthService_LogoutNeverFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	assert.False(t, h.svc.Logout(ctx, ""))
	assert.False(t, h.svc.Logout(ctx, "garbage"))

	res, err := h.svc.Login(ctx, assertionFor(t, "u-12", "l@example.com", true))
	require.NoError(t, err)
	h.sessions.invalidateEr = sessionrepo.ErrStorageUnavailable
	assert.False(t, h.svc.Logout(ctx, res.Token))

	h.sessions.invalidateEr = nil
	_, err = h.svc.Authenticate(ctx, res.Token)
	assert.NoError(t, err, "failed logout leaves the session usable")
}

func TestAuthService_SessionsAndCleanup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, err := h.svc.Login(ctx, assertionFor(t, "u-13", "m@example.com", true))
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	b, err := h.svc.Login(ctx, assertionFor(t, "u-13", "m@example.com", true))
	require.NoError(t, err)

	list, err := h.svc.Sessions(ctx, a.User.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.Session.ID, list[0].ID)
	for _, s := range list {
		assert.Empty(t, s.Secret)
	}

	h.svc.Logout(ctx, a.Token)
	n, err := h.svc.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = h.svc.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = h.svc.Authenticate(ctx, b.Token)
	assert.NoError(t, err)
}
