package fulfillment

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory repository useful for tests and local runs.
type MemoryRepo struct {
	mu    sync.Mutex
	units map[string]Unit
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{units: map[string]Unit{}} }

func (r *MemoryRepo) Clone() *MemoryRepo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := NewMemoryRepo()
	for k, v := range r.units {
		out.units[k] = v
	}
	return out
}

func (r *MemoryRepo) GetUnit(ctx context.Context, id string) (Unit, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[id]
	return u, ok, nil
}

func (r *MemoryRepo) SaveUnit(ctx context.Context, u Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[u.ID] = u
	return nil
}

func (r *MemoryRepo) ListUnits(ctx context.Context, q Query) ([]Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Unit, 0)
	for _, u := range r.units {
		if q.Match(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
