// Package reporting aggregates issued invoices and ledger entries into the
// operator financial summary.
package reporting

import (
	"context"
	"errors"
	"fmt"

	"settlement-platform/internal/invoice"
	"settlement-platform/internal/ledger"
	"settlement-platform/internal/store"

	"github.com/shopspring/decimal"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
// Implementations should read immutable sources: issued invoice figures and the ledger.
type Repository interface {
	ListInvoices(ctx context.Context, f invoice.Filter) ([]invoice.Invoice, error)
	ListEntries(ctx context.Context, f ledger.Filter) ([]ledger.Entry, error)
}

// StoreRepository reads through a store.Store, one read-only view per call.
type StoreRepository struct {
	st store.Store
}

func NewStoreRepository(st store.Store) *StoreRepository { return &StoreRepository{st: st} }

func (r *StoreRepository) ListInvoices(ctx context.Context, f invoice.Filter) ([]invoice.Invoice, error) {
	var out []invoice.Invoice
	err := r.st.Read(ctx, func(ctx context.Context, tx store.Tx) error {
		invs, err := tx.ListInvoices(ctx, f)
		out = invs
		return err
	})
	return out, err
}

func (r *StoreRepository) ListEntries(ctx context.Context, f ledger.Filter) ([]ledger.Entry, error) {
	var out []ledger.Entry
	err := r.st.Read(ctx, func(ctx context.Context, tx store.Tx) error {
		es, err := tx.ListEntries(ctx, f)
		out = es
		return err
	})
	return out, err
}

type Service struct {
	repo     Repository
	currency string
}

func NewService(repo Repository, currency string) *Service {
	return &Service{repo: repo, currency: currency}
}

// FinancialSummary totals the figures stored on invoices issued in the range.
// Figures are never recomputed from current pricing.
func (s *Service) FinancialSummary(ctx context.Context, req FinancialSummaryRequest) (FinancialSummary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return FinancialSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return FinancialSummary{}, errors.New("reporting: repository not configured")
	}
	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}

	invs, err := s.repo.ListInvoices(ctx, invoice.Filter{IssuedFrom: req.Range.From, IssuedTo: req.Range.To})
	if err != nil {
		return FinancialSummary{}, fmt.Errorf("reporting: list invoices: %w", err)
	}
	payments, err := s.repo.ListEntries(ctx, ledger.Filter{
		Type:   ledger.EntryTypePaymentReceived,
		Status: ledger.EntryStatusCompleted,
		From:   req.Range.From,
		To:     req.Range.To,
	})
	if err != nil {
		return FinancialSummary{}, fmt.Errorf("reporting: list payments: %w", err)
	}

	out := FinancialSummary{Range: req.Range, Currency: currency}
	for _, inv := range invs {
		if currency != "" && inv.Currency != "" && inv.Currency != currency {
			continue
		}
		if inv.Status == invoice.StatusCancelled {
			out.Cancelled++
			continue
		}
		switch inv.Type {
		case invoice.TypeCustomer, invoice.TypePackagePurchase:
			c := &out.Customers
			c.Invoices++
			c.Physical = c.Physical.Add(inv.PhysicalAmount)
			c.Digital = c.Digital.Add(inv.DigitalAmount)
			c.MonthlyFees = c.MonthlyFees.Add(inv.MonthlyFee)
			c.Packages = c.Packages.Add(inv.PackageAmount)
			c.Total = c.Total.Add(inv.Gross)
			c.Tax = c.Tax.Add(inv.TaxAmount)
			if inv.Status.Payable() {
				out.Outstanding = out.Outstanding.Add(inv.Gross)
			}
		case invoice.TypeProducer:
			p := &out.Producers
			p.Invoices++
			p.Gross = p.Gross.Add(inv.Gross)
			p.Commission = p.Commission.Add(inv.PlatformFee)
			p.CardFees = p.CardFees.Add(inv.CardFee)
			p.Net = p.Net.Add(inv.NetPayout)
		}
	}
	for _, e := range payments {
		if currency != "" && e.Currency != "" && e.Currency != currency {
			continue
		}
		out.Collected = out.Collected.Add(e.Amount)
	}

	out.NetPlatformEarnings = out.Producers.Commission.Add(out.Customers.MonthlyFees)
	return out, nil
}

// Zero reports whether the summary saw no activity.
func (f FinancialSummary) Zero() bool {
	return f.Customers.Invoices == 0 && f.Producers.Invoices == 0 && f.Cancelled == 0 && f.Collected.Equal(decimal.Zero)
}
