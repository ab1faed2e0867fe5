package repository

import (
	"context"
	"errors"
	"time"

	"interview-analyzer/internal/session/domain"
)

// ErrStorageUnavailable wraps failures of the backing store (connection loss, timeouts, driver errors).
var ErrStorageUnavailable = errors.New("session storage unavailable")

// Repository defines persistence for sessions. Every single-record mutation is atomic.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	// GetByID returns the session for id, or nil if not found, regardless of validity.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// ListByUser returns the user's sessions, newest first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	// Extend sets the expiry of id without touching its active flag. Returns nil if not found.
	Extend(ctx context.Context, id string, expiresAt time.Time) (*domain.Session, error)
	// Deactivate clears the active flag of id. Missing ids are not an error.
	Deactivate(ctx context.Context, id string) error
	// DeactivateAllByUser clears the active flag of every session owned by userID and returns how many changed.
	DeactivateAllByUser(ctx context.Context, userID string) (int64, error)
	// DeleteStale removes sessions that are inactive or expired at now and returns how many were removed.
	DeleteStale(ctx context.Context, now time.Time) (int64, error)
}
