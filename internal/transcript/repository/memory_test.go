package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"interview-analyzer/internal/transcript/domain"
)

func TestMemoryRepository_CreateGetDelete(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	tr := &domain.Transcript{
		ID:       "t1",
		UserID:   "u1",
		QAPairs:  []domain.QAPair{{Question: "q", Answer: "a"}},
		FileSize: 10,
	}
	if err := r.Create(ctx, tr); err != nil {
		t.Fatalf("Create: %v", err)
	}
	tr.QAPairs[0].Answer = "mutated"

	got, err := r.GetByID(ctx, "t1")
	if err != nil || got == nil {
		t.Fatalf("GetByID = %v, %v", got, err)
	}
	if got.QAPairs[0].Answer != "a" {
		t.Errorf("stored record shares QA pairs with caller: %+v", got.QAPairs)
	}
	if missing, err := r.GetByID(ctx, "nope"); missing != nil || err != nil {
		t.Errorf("GetByID missing = %v, %v; want nil, nil", missing, err)
	}

	if ok, err := r.Delete(ctx, "t1", "u2"); ok || err != nil {
		t.Errorf("Delete by non-owner = %v, %v; want false, nil", ok, err)
	}
	if ok, err := r.Delete(ctx, "t1", "u1"); !ok || err != nil {
		t.Errorf("Delete by owner = %v, %v; want true, nil", ok, err)
	}
	if ok, _ := r.Delete(ctx, "t1", "u1"); ok {
		t.Error("second Delete should report false")
	}
}

func TestMemoryRepository_ListByUser(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c", "d"} {
		_ = r.Create(ctx, &domain.Transcript{ID: id, UserID: "u1", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	_ = r.Create(ctx, &domain.Transcript{ID: "other", UserID: "u2", CreatedAt: base})

	testCases := []struct {
		name          string
		limit, offset int
		want          []string
	}{
		{"all", 0, 0, []string{"d", "c", "b", "a"}},
		{"first page", 2, 0, []string{"d", "c"}},
		{"second page", 2, 2, []string{"b", "a"}},
		{"past the end", 2, 10, []string{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			list, err := r.ListByUser(ctx, "u1", tc.limit, tc.offset)
			if err != nil {
				t.Fatalf("ListByUser: %v", err)
			}
			got := make([]string, len(list))
			for i, tr := range list {
				got[i] = tr.ID
			}
			if len(got) != len(tc.want) {
				t.Fatalf("ListByUser = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("ListByUser = %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestMemoryRepository_CanceledContext(t *testing.T) {
	r := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Create(ctx, &domain.Transcript{ID: "x"}); !errors.Is(err, ErrStorageUnavailable) || !errors.Is(err, context.Canceled) {
		t.Errorf("Create with canceled context = %v, want ErrStorageUnavailable wrapping context.Canceled", err)
	}
	if _, err := r.ListByUser(ctx, "u", 10, 0); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("ListByUser with canceled context = %v, want ErrStorageUnavailable", err)
	}
}
