package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"interview-analyzer/internal/user/domain"
)

// MemoryRepository is an in-process user Repository.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]*domain.User
	byExt map[string]string
}

// NewMemoryRepository returns an empty in-memory user repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  make(map[string]*domain.User),
		byExt: make(map[string]string),
	}
}

func clone(u *domain.User) *domain.User {
	c := *u
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.byID[id]; ok {
		return clone(u), nil
	}
	return nil, nil
}

func (r *MemoryRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byExt[externalID]
	if !ok {
		return nil, nil
	}
	return clone(r.byID[id]), nil
}

func (r *MemoryRepository) Create(ctx context.Context, u *domain.User) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byExt[u.ExternalID]; exists {
		return ErrDuplicate
	}
	if _, exists := r.byID[u.ID]; exists {
		return ErrDuplicate
	}
	r.byID[u.ID] = clone(u)
	r.byExt[u.ExternalID] = u.ID
	return nil
}

func (r *MemoryRepository) RecordLogin(ctx context.Context, id string, at time.Time, name, pictureURL string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil
	}
	u.LastLoginAt = &at
	u.UpdatedAt = at
	if name != "" {
		u.Name = name
	}
	u.PictureURL = pictureURL
	return nil
}

// SetStatus changes a user's status. Used by operators and tests to disable accounts.
func (r *MemoryRepository) SetStatus(ctx context.Context, id string, status domain.UserStatus) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.Status = status
	}
	return nil
}

// ctxErr reports a done context the way the Postgres driver reports a cancelled query.
func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}
