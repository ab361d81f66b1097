package pricing

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory repository useful for tests and local runs.
type MemoryRepo struct {
	mu      sync.Mutex
	configs map[string]Configuration
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{configs: map[string]Configuration{}}
}

// Clone returns an independent copy, used by the memory store for rollback.
func (r *MemoryRepo) Clone() *MemoryRepo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := NewMemoryRepo()
	for k, v := range r.configs {
		out.configs[k] = v
	}
	return out
}

func (r *MemoryRepo) InsertConfiguration(ctx context.Context, c Configuration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[c.ID] = c
	return nil
}

func (r *MemoryRepo) GetConfiguration(ctx context.Context, id string) (Configuration, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[id]
	return c, ok, nil
}

func (r *MemoryRepo) ActiveConfiguration(ctx context.Context) (Configuration, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.configs {
		if c.Active {
			return c, true, nil
		}
	}
	return Configuration{}, false, nil
}

func (r *MemoryRepo) ListConfigurations(ctx context.Context) ([]Configuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Configuration, 0, len(r.configs))
	for _, c := range r.configs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) ActivateConfiguration(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[id]; !ok {
		return ErrNotFound
	}
	for k, c := range r.configs {
		want := k == id
		if c.Active != want {
			c.Active = want
			c.UpdatedAt = at
			r.configs[k] = c
		}
	}
	return nil
}
