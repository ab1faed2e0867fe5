package repository

import (
	"context"
	"errors"

	"interview-analyzer/internal/transcript/domain"
)

// ErrStorageUnavailable marks failures of the underlying storage backend.
var ErrStorageUnavailable = errors.New("transcript storage unavailable")

// Repository defines persistence for transcripts.
type Repository interface {
	Create(ctx context.Context, t *domain.Transcript) error
	// GetByID returns the transcript for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Transcript, error)
	// ListByUser returns the user's transcripts, newest first.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Transcript, error)
	// Delete removes the transcript id if it belongs to userID and reports whether a row was removed.
	Delete(ctx context.Context, id, userID string) (bool, error)
}
