package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"settlement-platform/internal/invoice"
	"settlement-platform/internal/ledger"
	"settlement-platform/internal/store"
	"settlement-platform/internal/store/memory"

	"github.com/shopspring/decimal"
)

type fakeRepo struct {
	invoices []invoice.Invoice
	entries  []ledger.Entry
}

func (r *fakeRepo) ListInvoices(ctx context.Context, f invoice.Filter) ([]invoice.Invoice, error) {
	var out []invoice.Invoice
	for _, inv := range r.invoices {
		if f.Match(inv) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListEntries(ctx context.Context, f ledger.Filter) ([]ledger.Entry, error) {
	var out []ledger.Entry
	for _, e := range r.entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleInvoices(now time.Time) []invoice.Invoice {
	return []invoice.Invoice{
		{ID: "c1", Type: invoice.TypeCustomer, CustomerID: "cust", Currency: "TRY", Status: invoice.StatusPaid, IssuedAt: now,
			PhysicalAmount: d("450"), MonthlyFee: d("100"), Gross: d("550"), TaxAmount: d("91.67")},
		{ID: "p1", Type: invoice.TypeProducer, ProducerID: "prod", Currency: "TRY", Status: invoice.StatusIssued, IssuedAt: now,
			Gross: d("450"), PlatformFee: d("29.25"), CardFee: d("13.50"), NetPayout: d("407.25")},
		{ID: "k1", Type: invoice.TypePackagePurchase, CustomerID: "cust", Currency: "TRY", Status: invoice.StatusSent, IssuedAt: now,
			PackageAmount: d("3990"), Gross: d("3990"), TaxAmount: d("665")},
		{ID: "x1", Type: invoice.TypeCustomer, CustomerID: "cust", Currency: "TRY", Status: invoice.StatusCancelled, IssuedAt: now,
			Gross: d("50")},
		{ID: "old", Type: invoice.TypeCustomer, CustomerID: "cust", Currency: "TRY", Status: invoice.StatusPaid, IssuedAt: now.AddDate(0, -2, 0),
			Gross: d("999")},
	}
}

func TestFinancialSummary_Aggregates(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		invoices: sampleInvoices(now),
		entries: []ledger.Entry{
			{ID: "e1", Type: ledger.EntryTypePaymentReceived, Status: ledger.EntryStatusCompleted, Amount: d("550"), Currency: "TRY", CreatedAt: now},
		},
	}
	svc := NewService(repo, "TRY")

	out, err := svc.FinancialSummary(context.Background(), FinancialSummaryRequest{Range: TimeRange{From: now.Add(-24 * time.Hour), To: now.Add(24 * time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Customers.Invoices != 2 || !out.Customers.Total.Equal(d("4540")) {
		t.Fatalf("unexpected customer revenue: %+v", out.Customers)
	}
	if !out.Customers.MonthlyFees.Equal(d("100")) || !out.Customers.Packages.Equal(d("3990")) {
		t.Fatalf("unexpected customer split: %+v", out.Customers)
	}
	if out.Producers.Invoices != 1 || !out.Producers.Net.Equal(d("407.25")) || !out.Producers.Commission.Equal(d("29.25")) {
		t.Fatalf("unexpected producer figures: %+v", out.Producers)
	}
	if out.Cancelled != 1 {
		t.Fatalf("expected one cancelled invoice, got %d", out.Cancelled)
	}
	if !out.Outstanding.Equal(d("3990")) || !out.Collected.Equal(d("550")) {
		t.Fatalf("unexpected collection figures: outstanding=%s collected=%s", out.Outstanding, out.Collected)
	}
	if !out.NetPlatformEarnings.Equal(d("129.25")) {
		t.Fatalf("expected net platform earnings 129.25, got %s", out.NetPlatformEarnings)
	}
}

func TestFinancialSummary_RejectsBadRange(t *testing.T) {
	svc := NewService(&fakeRepo{}, "TRY")
	now := time.Now()
	_, err := svc.FinancialSummary(context.Background(), FinancialSummaryRequest{Range: TimeRange{From: now, To: now}})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestFinancialSummary_FiltersCurrency(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	invs := sampleInvoices(now)
	invs[0].Currency = "EUR"
	svc := NewService(&fakeRepo{invoices: invs}, "TRY")

	out, err := svc.FinancialSummary(context.Background(), FinancialSummaryRequest{Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Customers.Invoices != 1 || !out.Customers.MonthlyFees.IsZero() {
		t.Fatalf("expected EUR invoice skipped: %+v", out.Customers)
	}
}

func TestStoreRepository_ReadsThroughStore(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	st := memory.New()
	err := st.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.InsertInvoice(ctx, sampleInvoices(now)[1])
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := NewService(NewStoreRepository(st), "TRY")
	out, err := svc.FinancialSummary(context.Background(), FinancialSummaryRequest{Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Producers.Invoices != 1 || out.Zero() {
		t.Fatalf("expected producer invoice in summary: %+v", out)
	}
}
