package audit

import (
	"context"
	"errors"
	"slices"
	"sync"
)

var ErrDuplicateEvent = errors.New("audit: event already recorded")

// MemoryRepo keeps the trail in append order for the in-process store.
// An event id is accepted once; history is never rewritten.
type MemoryRepo struct {
	mu   sync.RWMutex
	log  []Event
	byID map[string]int
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{byID: map[string]int{}} }

func (r *MemoryRepo) Clone() *MemoryRepo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &MemoryRepo{log: slices.Clone(r.log), byID: make(map[string]int, len(r.byID))}
	for id, i := range r.byID {
		out.byID[id] = i
	}
	return out
}

func (r *MemoryRepo) AppendAuditEvent(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byID[e.ID]; dup && e.ID != "" {
		return ErrDuplicateEvent
	}
	r.byID[e.ID] = len(r.log)
	r.log = append(r.log, e)
	return nil
}

// Events returns the trail oldest first, limited to types when any are given.
func (r *MemoryRepo) Events(types ...EventType) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Event
	for _, e := range r.log {
		if len(types) == 0 || slices.Contains(types, e.Type) {
			out = append(out, e)
		}
	}
	return out
}
