package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"interview-analyzer/internal/session/domain"
)

// MemoryRepository is an in-process Repository. Records are stored and returned as copies,
// so callers never share mutable state with the store.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]*domain.Session
}

// NewMemoryRepository returns an empty in-memory session repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID: make(map[string]*domain.Session),
	}
}

func clone(s *domain.Session) *domain.Session {
	c := *s
	c.Secret = ""
	return &c
}

// Create stores s. The plaintext secret is never retained.
func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[s.ID] = clone(s)
	return nil
}

// GetByID returns a copy of the session for id, or nil if not found.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return clone(s), nil
}

// ListByUser returns copies of the user's sessions, newest first.
func (r *MemoryRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]*domain.Session, 0)
	for _, s := range r.byID {
		if s.UserID == userID {
			out = append(out, clone(s))
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Extend sets the expiry of id. Returns nil if not found.
func (r *MemoryRepository) Extend(ctx context.Context, id string, expiresAt time.Time) (*domain.Session, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	s.ExpiresAt = expiresAt
	return clone(s), nil
}

// Deactivate clears the active flag of id.
func (r *MemoryRepository) Deactivate(ctx context.Context, id string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok {
		s.Active = false
	}
	return nil
}

// DeactivateAllByUser clears the active flag of every session owned by userID under one lock.
func (r *MemoryRepository) DeactivateAllByUser(ctx context.Context, userID string) (int64, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.byID {
		if s.UserID == userID && s.Active {
			s.Active = false
			n++
		}
	}
	return n, nil
}

// DeleteStale removes inactive or expired sessions. Candidates are collected under a read lock
// and each one is re-checked and removed under its own short write lock.
func (r *MemoryRepository) DeleteStale(ctx context.Context, now time.Time) (int64, error) {
	r.mu.RLock()
	var candidates []string
	for id, s := range r.byID {
		if !s.IsValid(now) {
			candidates = append(candidates, id)
		}
	}
	r.mu.RUnlock()

	var n int64
	for _, id := range candidates {
		if err := ctxErr(ctx); err != nil {
			return n, err
		}
		r.mu.Lock()
		if s, ok := r.byID[id]; ok && !s.IsValid(now) {
			delete(r.byID, id)
			n++
		}
		r.mu.Unlock()
	}
	return n, nil
}

// ctxErr reports a done context the way the Postgres driver reports a cancelled query.
func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}
