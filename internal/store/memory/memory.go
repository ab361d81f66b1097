// Package memory is an in-process Store for tests and local runs.
// Transactions are fully serialized: each one works on a copy of the state
// that replaces the committed state only when the unit of work succeeds.
package memory

import (
	"context"
	"sync"
	"time"

	"settlement-platform/internal/audit"
	"settlement-platform/internal/fulfillment"
	"settlement-platform/internal/invoice"
	"settlement-platform/internal/ledger"
	"settlement-platform/internal/pricing"
	"settlement-platform/internal/store"
	"settlement-platform/internal/subscription"
)

type Store struct {
	mu sync.Mutex

	pricing       *pricing.MemoryRepo
	subscriptions *subscription.MemoryRepo
	units         *fulfillment.MemoryRepo
	invoices      *invoice.MemoryRepo
	ledger        *ledger.MemoryRepo
	audit         *audit.MemoryRepo
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		pricing:       pricing.NewMemoryRepo(),
		subscriptions: subscription.NewMemoryRepo(),
		units:         fulfillment.NewMemoryRepo(),
		invoices:      invoice.NewMemoryRepo(),
		ledger:        ledger.NewMemoryRepo(),
		audit:         audit.NewMemoryRepo(),
	}
}

// snapshot copies the committed state. Callers hold s.mu.
func (s *Store) snapshot() *tx {
	return &tx{
		pricing:       s.pricing.Clone(),
		subscriptions: s.subscriptions.Clone(),
		units:         s.units.Clone(),
		invoices:      s.invoices.Clone(),
		ledger:        s.ledger.Clone(),
		audit:         s.audit.Clone(),
	}
}

// WithTx must not be nested: the store lock is held for the whole unit of work.
func (s *Store) WithTx(ctx context.Context, fn store.TxFunc) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	t := s.snapshot()
	if err := fn(ctx, t); err != nil {
		return err
	}

	s.pricing = t.pricing
	s.subscriptions = t.subscriptions
	s.units = t.units
	s.invoices = t.invoices
	s.ledger = t.ledger
	s.audit = t.audit
	return nil
}

// Read runs fn over a copy of the committed state. Writes made by fn are
// discarded.
func (s *Store) Read(ctx context.Context, fn store.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, s.snapshot())
}

// AuditEvents exposes the committed audit trail for tests, limited to types
// when any are given.
func (s *Store) AuditEvents(types ...audit.EventType) []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audit.Events(types...)
}

type tx struct {
	pricing       *pricing.MemoryRepo
	subscriptions *subscription.MemoryRepo
	units         *fulfillment.MemoryRepo
	invoices      *invoice.MemoryRepo
	ledger        *ledger.MemoryRepo
	audit         *audit.MemoryRepo
}

var _ store.Tx = (*tx)(nil)

// LockBillingKey is a no-op: memory transactions are already serialized.
func (t *tx) LockBillingKey(ctx context.Context, key string) error { return nil }

func (t *tx) InsertConfiguration(ctx context.Context, c pricing.Configuration) error {
	return t.pricing.InsertConfiguration(ctx, c)
}

func (t *tx) GetConfiguration(ctx context.Context, id string) (pricing.Configuration, bool, error) {
	return t.pricing.GetConfiguration(ctx, id)
}

func (t *tx) ActiveConfiguration(ctx context.Context) (pricing.Configuration, bool, error) {
	return t.pricing.ActiveConfiguration(ctx)
}

func (t *tx) ListConfigurations(ctx context.Context) ([]pricing.Configuration, error) {
	return t.pricing.ListConfigurations(ctx)
}

func (t *tx) ActivateConfiguration(ctx context.Context, id string, at time.Time) error {
	return t.pricing.ActivateConfiguration(ctx, id, at)
}

func (t *tx) GetSubscription(ctx context.Context, customerID string) (subscription.Subscription, bool, error) {
	return t.subscriptions.GetSubscription(ctx, customerID)
}

func (t *tx) SaveSubscription(ctx context.Context, s subscription.Subscription) error {
	return t.subscriptions.SaveSubscription(ctx, s)
}

func (t *tx) ListSubscriptions(ctx context.Context) ([]subscription.Subscription, error) {
	return t.subscriptions.ListSubscriptions(ctx)
}

func (t *tx) GetPlan(ctx context.Context, id string) (subscription.Plan, bool, error) {
	return t.subscriptions.GetPlan(ctx, id)
}

func (t *tx) SavePlan(ctx context.Context, p subscription.Plan) error {
	return t.subscriptions.SavePlan(ctx, p)
}

func (t *tx) GetUnit(ctx context.Context, id string) (fulfillment.Unit, bool, error) {
	return t.units.GetUnit(ctx, id)
}

func (t *tx) SaveUnit(ctx context.Context, u fulfillment.Unit) error {
	return t.units.SaveUnit(ctx, u)
}

func (t *tx) ListUnits(ctx context.Context, q fulfillment.Query) ([]fulfillment.Unit, error) {
	return t.units.ListUnits(ctx, q)
}

func (t *tx) NextInvoiceSequence(ctx context.Context, prefix, period string) (int64, error) {
	return t.invoices.NextInvoiceSequence(ctx, prefix, period)
}

func (t *tx) InsertInvoice(ctx context.Context, inv invoice.Invoice) error {
	return t.invoices.InsertInvoice(ctx, inv)
}

func (t *tx) UpdateInvoice(ctx context.Context, inv invoice.Invoice) error {
	return t.invoices.UpdateInvoice(ctx, inv)
}

func (t *tx) GetInvoice(ctx context.Context, id string) (invoice.Invoice, bool, error) {
	return t.invoices.GetInvoice(ctx, id)
}

func (t *tx) FindInvoiceByPurchaseRef(ctx context.Context, typ invoice.Type, ref string) (invoice.Invoice, bool, error) {
	return t.invoices.FindInvoiceByPurchaseRef(ctx, typ, ref)
}

func (t *tx) ListInvoices(ctx context.Context, f invoice.Filter) ([]invoice.Invoice, error) {
	return t.invoices.ListInvoices(ctx, f)
}

func (t *tx) InsertEntry(ctx context.Context, e ledger.Entry) error {
	return t.ledger.InsertEntry(ctx, e)
}

func (t *tx) GetEntry(ctx context.Context, id string) (ledger.Entry, bool, error) {
	return t.ledger.GetEntry(ctx, id)
}

func (t *tx) FindEntryByIdempotency(ctx context.Context, key string) (ledger.Entry, bool, error) {
	return t.ledger.FindEntryByIdempotency(ctx, key)
}

func (t *tx) FindReversal(ctx context.Context, entryID string) (ledger.Entry, bool, error) {
	return t.ledger.FindReversal(ctx, entryID)
}

func (t *tx) ListEntries(ctx context.Context, f ledger.Filter) ([]ledger.Entry, error) {
	return t.ledger.ListEntries(ctx, f)
}

func (t *tx) AppendAuditEvent(ctx context.Context, e audit.Event) error {
	return t.audit.AppendAuditEvent(ctx, e)
}
