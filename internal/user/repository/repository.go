package repository

import (
	"context"
	"errors"
	"time"

	"interview-analyzer/internal/user/domain"
)

var (
	// ErrDuplicate is returned by Create when the external id is already registered.
	ErrDuplicate = errors.New("user already exists")
	// ErrStorageUnavailable marks failures of the underlying storage backend.
	ErrStorageUnavailable = errors.New("user storage unavailable")
)

// Repository defines persistence for users.
type Repository interface {
	// GetByID returns the user for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByExternalID returns the user linked to the identity provider subject, or nil if not found.
	GetByExternalID(ctx context.Context, externalID string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// RecordLogin sets last_login_at and refreshes the display profile.
	RecordLogin(ctx context.Context, id string, at time.Time, name, pictureURL string) error
}
