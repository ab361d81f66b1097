package ledger

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory append-only repository useful for tests.
type MemoryRepo struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Clone() *MemoryRepo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := &MemoryRepo{entries: make([]Entry, len(r.entries))}
	copy(out.entries, r.entries)
	return out
}

func (r *MemoryRepo) InsertEntry(ctx context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.entries {
		if x.IdempotencyKey == e.IdempotencyKey {
			return ErrInvalidArgument
		}
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *MemoryRepo) GetEntry(ctx context.Context, id string) (Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

func (r *MemoryRepo) FindEntryByIdempotency(ctx context.Context, key string) (Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.IdempotencyKey == key {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

func (r *MemoryRepo) FindReversal(ctx context.Context, entryID string) (Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ReversesEntryID == entryID {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

func (r *MemoryRepo) ListEntries(ctx context.Context, f Filter) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0)
	for _, e := range r.entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
