package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"interview-analyzer/internal/transcript/domain"
)

// MemoryRepository is an in-process Repository returning copies of stored records.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]*domain.Transcript
}

// NewMemoryRepository returns an empty in-memory transcript repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.Transcript)}
}

func clone(t *domain.Transcript) *domain.Transcript {
	c := *t
	c.QAPairs = append([]domain.QAPair(nil), t.QAPairs...)
	return &c
}

func (r *MemoryRepository) Create(ctx context.Context, t *domain.Transcript) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[t.ID] = clone(t)
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Transcript, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return clone(t), nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Transcript, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]*domain.Transcript, 0)
	for _, t := range r.byID {
		if t.UserID == userID {
			out = append(out, clone(t))
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []*domain.Transcript{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id, userID string) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok || t.UserID != userID {
		return false, nil
	}
	delete(r.byID, id)
	return true, nil
}

// ctxErr reports a done context the way the Postgres driver reports a cancelled query.
func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}
