package billing

import (
	"context"

	"settlement-platform/internal/invoice"
	"settlement-platform/internal/ledger"
	"settlement-platform/internal/pricing"
	"settlement-platform/internal/store"
	"settlement-platform/internal/subscription"
)

func (s *Service) ActivePricing(ctx context.Context) (pricing.Configuration, error) {
	var out pricing.Configuration
	err := s.store.Read(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := s.bind(tx).catalog.GetActive(ctx)
		out = c
		return err
	})
	return out, err
}

func (s *Service) ListPricing(ctx context.Context) ([]pricing.Configuration, error) {
	var out []pricing.Configuration
	err := s.store.Read(ctx, func(ctx context.Context, tx store.Tx) error {
		cs, err := s.bind(tx).catalog.List(ctx)
		out = cs
		return err
	})
	return out, err
}

func (s *Service) PricingSummary(ctx context.Context) (pricing.Summary, error) {
	var out pricing.Summary
	err := s.store.Read(ctx, func(ctx context.Context, tx store.Tx) error {
		sum, err := s.bind(tx).catalog.Summary(ctx)
		out = sum
		return err
	})
	return out, err
}

func (s *Service) GetInvoice(ctx context.Context, id string) (invoice.Invoice, error) {
	var out invoice.Invoice
	err := s.store.Read(ctx, func(ctx context.Context, tx store.Tx) error {
		inv, err := s.bind(tx).invoices.Get(ctx, id)
		out = inv
		return err
	})
	return out, err
}

func (s *Service) ListInvoices(ctx context.Context, f invoice.Filter) ([]invoice.Invoice, error) {
	var out []invoice.Invoice
	err := s.store.Read(ctx, func(ctx context.Context, tx store.Tx) error {
		invs, err := s.bind(tx).invoices.List(ctx, f)
		out = invs
		return err
	})
	return out, err
}

// Subscription returns the customer's subscription as of now, monthly reset applied.
func (s *Service) Subscription(ctx context.Context, customerID string) (subscription.Subscription, bool, error) {
	var (
		out subscription.Subscription
		ok  bool
	)
	err := s.store.Read(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, ok, err = s.bind(tx).subs.Load(ctx, customerID)
		return err
	})
	return out, ok, err
}

func (s *Service) LedgerEntries(ctx context.Context, f ledger.Filter) ([]ledger.Entry, error) {
	var out []ledger.Entry
	err := s.store.Read(ctx, func(ctx context.Context, tx store.Tx) error {
		es, err := s.bind(tx).ledger.List(ctx, f)
		out = es
		return err
	})
	return out, err
}
