package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestService(now time.Time) (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	return NewService(repo, "TRY").WithClock(func() time.Time { return now }), repo
}

func TestAppend_IsIdempotent(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	svc, repo := newTestService(now)
	ctx := context.Background()

	req := AppendRequest{
		Type:           EntryTypeCustomerCharge,
		Amount:         decimal.NewFromInt(450),
		PayerID:        "c1",
		PayeeID:        PartyPlatform,
		InvoiceID:      "inv1",
		IdempotencyKey: "invoice:inv1:charge",
	}
	a, err := svc.Append(ctx, req)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	b, err := svc.Append(ctx, req)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if a.ID != b.ID {
		t.Fatalf("expected retried append to return the original entry")
	}
	all, _ := repo.ListEntries(ctx, Filter{})
	if len(all) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(all))
	}
	if a.Status != EntryStatusPending {
		t.Fatalf("expected default status pending, got %s", a.Status)
	}
}

func TestAppend_RejectsInvalidRequests(t *testing.T) {
	svc, _ := newTestService(time.Now())
	ctx := context.Background()

	if _, err := svc.Append(ctx, AppendRequest{Type: EntryTypeCustomerCharge, PayerID: "c", PayeeID: "p"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument without idempotency key, got %v", err)
	}
	if _, err := svc.Append(ctx, AppendRequest{Type: EntryTypeCustomerCharge, PayerID: "c", PayeeID: "p", IdempotencyKey: "k", Amount: decimal.NewFromInt(-1)}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for negative amount, got %v", err)
	}
}

func TestReverse_AppendsOffsettingEntryOnce(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	svc, _ := newTestService(now)
	ctx := context.Background()

	e, err := svc.Append(ctx, AppendRequest{
		Type: EntryTypeProducerPayout, Amount: decimal.RequireFromString("420.75"),
		PayerID: PartyPlatform, PayeeID: "p1", InvoiceID: "inv2", IdempotencyKey: "invoice:inv2:payout",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	r1, err := svc.Reverse(ctx, e.ID, "cancelled")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	r2, err := svc.Reverse(ctx, e.ID, "again")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if r1.ID != r2.ID {
		t.Fatalf("expected second reverse to return the first reversal")
	}
	if _, err := svc.Reverse(ctx, r1.ID, "reverse the reversal"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected reversal entries to be non-reversible, got %v", err)
	}

	sum, err := svc.Sum(ctx, Filter{InvoiceID: "inv2"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !sum.IsZero() {
		t.Fatalf("expected reversed entries to net to zero, got %s", sum)
	}
}

func TestReverse_UnknownEntry(t *testing.T) {
	svc, _ := newTestService(time.Now())
	if _, err := svc.Reverse(context.Background(), "missing", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSummary_AggregatesByTypeAndStatus(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	svc, _ := newTestService(now)
	ctx := context.Background()

	mustAppend := func(req AppendRequest) Entry {
		e, err := svc.Append(ctx, req)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		return e
	}
	mustAppend(AppendRequest{Type: EntryTypeCustomerCharge, Amount: decimal.NewFromInt(550), PayerID: "c1", PayeeID: PartyPlatform, IdempotencyKey: "a"})
	payout := mustAppend(AppendRequest{Type: EntryTypeProducerPayout, Amount: decimal.RequireFromString("420.75"), PayerID: PartyPlatform, PayeeID: "p1", IdempotencyKey: "b"})
	mustAppend(AppendRequest{Type: EntryTypePaymentReceived, Amount: decimal.NewFromInt(550), PayerID: "c1", PayeeID: PartyPlatform, Status: EntryStatusCompleted, IdempotencyKey: "c"})
	if _, err := svc.Reverse(ctx, payout.ID, "oops"); err != nil {
		t.Fatalf("reverse: %v", err)
	}

	s, err := svc.Summary(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.Entries != 4 {
		t.Fatalf("expected 4 entries, got %d", s.Entries)
	}
	if !s.ByType[EntryTypeProducerPayout].IsZero() {
		t.Fatalf("expected payouts to net to zero, got %s", s.ByType[EntryTypeProducerPayout])
	}
	if !s.Settled.Equal(decimal.NewFromInt(550)) {
		t.Fatalf("expected settled 550, got %s", s.Settled)
	}
	if !s.Reversed.Equal(decimal.RequireFromString("420.75")) {
		t.Fatalf("expected reversed 420.75, got %s", s.Reversed)
	}

	if _, err := svc.Summary(ctx, now, now); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty range, got %v", err)
	}
}
