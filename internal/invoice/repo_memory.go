package invoice

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory repository useful for tests and local runs.
type MemoryRepo struct {
	mu        sync.Mutex
	invoices  map[string]Invoice
	sequences map[string]int64
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{invoices: map[string]Invoice{}, sequences: map[string]int64{}}
}

func (r *MemoryRepo) Clone() *MemoryRepo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := NewMemoryRepo()
	for k, v := range r.invoices {
		out.invoices[k] = v
	}
	for k, v := range r.sequences {
		out.sequences[k] = v
	}
	return out
}

func (r *MemoryRepo) NextInvoiceSequence(ctx context.Context, prefix, period string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := prefix + "-" + period
	r.sequences[key]++
	return r.sequences[key], nil
}

func (r *MemoryRepo) InsertInvoice(ctx context.Context, inv Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.invoices {
		if x.Number == inv.Number {
			return ErrNumberConflict
		}
	}
	r.invoices[inv.ID] = inv
	return nil
}

func (r *MemoryRepo) UpdateInvoice(ctx context.Context, inv Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[inv.ID]; !ok {
		return ErrNotFound
	}
	r.invoices[inv.ID] = inv
	return nil
}

func (r *MemoryRepo) GetInvoice(ctx context.Context, id string) (Invoice, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	return inv, ok, nil
}

func (r *MemoryRepo) FindInvoiceByPurchaseRef(ctx context.Context, t Type, ref string) (Invoice, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.Type == t && inv.PurchaseRef == ref {
			return inv, true, nil
		}
	}
	return Invoice{}, false, nil
}

func (r *MemoryRepo) ListInvoices(ctx context.Context, f Filter) ([]Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Invoice, 0)
	for _, inv := range r.invoices {
		if f.Match(inv) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].Number > out[j].Number
		}
		return out[i].IssuedAt.After(out[j].IssuedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
