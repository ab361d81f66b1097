package subscription

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory repository useful for tests and local runs.
type MemoryRepo struct {
	mu    sync.Mutex
	subs  map[string]Subscription
	plans map[string]Plan
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{subs: map[string]Subscription{}, plans: map[string]Plan{}}
}

func (r *MemoryRepo) Clone() *MemoryRepo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := NewMemoryRepo()
	for k, v := range r.subs {
		out.subs[k] = v
	}
	for k, v := range r.plans {
		out.plans[k] = v
	}
	return out
}

func (r *MemoryRepo) GetSubscription(ctx context.Context, customerID string) (Subscription, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[customerID]
	return s, ok, nil
}

func (r *MemoryRepo) SaveSubscription(ctx context.Context, s Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[s.CustomerID] = s
	return nil
}

func (r *MemoryRepo) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return out, nil
}

func (r *MemoryRepo) GetPlan(ctx context.Context, id string) (Plan, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	return p, ok, nil
}

func (r *MemoryRepo) SavePlan(ctx context.Context, p Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[p.ID] = p
	return nil
}
