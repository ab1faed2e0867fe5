// Package service implements the session lifecycle on top of a session repository:
// creation with a one-time secret, validity lookups, sliding renewal, revocation and reclamation.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-logr/logr"
	"github.com/oklog/ulid/v2"

	"interview-analyzer/internal/logutil"
	"interview-analyzer/internal/security"
	"interview-analyzer/internal/session/domain"
	"interview-analyzer/internal/session/repository"
)

// ErrNotFound is returned for sessions that are absent, expired or inactive. Callers cannot tell these apart.
var ErrNotFound = errors.New("session not found")

// ErrInvalidTTL is returned when a non-positive TTL is supplied.
var ErrInvalidTTL = errors.New("session ttl must be positive")

// DefaultSecretBytes is the number of random bytes in a session secret when none is configured.
const DefaultSecretBytes = 32

// Store is the session store. It is safe for concurrent use when its repository is.
type Store struct {
	repo        repository.Repository
	secretBytes int
	logger      logr.Logger
	nowF        func() time.Time
}

// NewStore returns a Store over repo. secretBytes <= 0 selects DefaultSecretBytes.
func NewStore(repo repository.Repository, secretBytes int, logger logr.Logger) *Store {
	if secretBytes <= 0 {
		secretBytes = DefaultSecretBytes
	}
	return &Store{
		repo:        repo,
		secretBytes: secretBytes,
		logger:      logger.WithName("session-store"),
		nowF:        time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.nowF = now
	}
	return s
}

func (s *Store) now() time.Time {
	return s.nowF().UTC()
}

// Create allocates a new active session for userID expiring at now+ttl. The returned record carries
// the plaintext secret; it is the only time the secret is ever exposed.
func (s *Store) Create(ctx context.Context, userID string, ttl time.Duration) (*domain.Session, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	secret, err := security.GenerateSessionSecret(s.secretBytes)
	if err != nil {
		return nil, logutil.LogAndWrapErr(s.logger, "failed to generate session secret", err)
	}
	now := s.now()
	sess := &domain.Session{
		ID:         ulid.Make().String(),
		UserID:     userID,
		Secret:     secret,
		SecretHash: security.HashSessionSecret(secret),
		ExpiresAt:  now.Add(ttl),
		Active:     true,
		CreatedAt:  now,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, logutil.LogAndWrapErr(s.logger, "failed to create session", err, "userID", userID)
	}
	s.logger.V(1).Info("session created", "sessionID", sess.ID, "userID", userID, "expiresAt", sess.ExpiresAt)
	return sess, nil
}

// FindValid returns the session for id only if it is active and unexpired. Storage failures propagate.
func (s *Store) FindValid(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.IsValid(s.now()) {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Renew sets the expiry of sess to now+ttl. It never reactivates an inactive session.
// Returns ErrNotFound if the record no longer exists.
func (s *Store) Renew(ctx context.Context, sess *domain.Session, ttl time.Duration) (*domain.Session, error) {
	if sess == nil {
		return nil, ErrNotFound
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	updated, err := s.repo.Extend(ctx, sess.ID, s.now().Add(ttl))
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrNotFound
	}
	return updated, nil
}

// Invalidate deactivates the session with id. Repeated calls and unknown ids are not errors.
func (s *Store) Invalidate(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.repo.Deactivate(ctx, id)
}

// InvalidateAllForUser deactivates every session owned by userID and returns how many were active.
func (s *Store) InvalidateAllForUser(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.DeactivateAllByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.V(1).Info("sessions invalidated for user", "userID", userID, "count", n)
	return n, nil
}

// ListActive returns userID's currently valid sessions, newest first, without secrets.
func (s *Store) ListActive(ctx context.Context, userID string) ([]*domain.Session, error) {
	all, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]*domain.Session, 0, len(all))
	for _, sess := range all {
		if sess.IsValid(now) {
			out = append(out, sess.Redacted())
		}
	}
	return out, nil
}

// Cleanup deletes sessions that are inactive or expired and returns how many were removed.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	defer logutil.NewTimingLogger(s.logger, time.Now(), "session cleanup")()
	return s.repo.DeleteStale(ctx, s.now())
}
