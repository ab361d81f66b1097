package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository is the append-only persistence contract for ledger entries.
// No update or delete methods exist.
type Repository interface {
	InsertEntry(ctx context.Context, e Entry) error
	GetEntry(ctx context.Context, id string) (Entry, bool, error)
	FindEntryByIdempotency(ctx context.Context, key string) (Entry, bool, error)
	FindReversal(ctx context.Context, entryID string) (Entry, bool, error)
	ListEntries(ctx context.Context, f Filter) ([]Entry, error)
}

// Service records money movements.
//
// Money invariants:
// - Ledger is append-only (immutable)
// - Every posting carries an idempotency key; a retried posting returns the original entry
// - Corrections are offsetting entries, never edits
type Service struct {
	repo     Repository
	currency string
	clock    func() time.Time
}

func NewService(repo Repository, currency string) *Service {
	return &Service{repo: repo, currency: currency, clock: time.Now}
}

func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

type AppendRequest struct {
	Type           EntryType
	Amount         decimal.Decimal
	PayerID        string
	PayeeID        string
	InvoiceID      string
	Status         EntryStatus
	IdempotencyKey string
	Memo           string
}

var (
	ErrNotFound        = errors.New("ledger: entry not found")
	ErrInvalidArgument = errors.New("ledger: invalid argument")
)

// Append posts a new entry. A request whose idempotency key was already used
// returns the existing entry unchanged.
func (s *Service) Append(ctx context.Context, req AppendRequest) (Entry, error) {
	if req.Type == "" || strings.TrimSpace(req.IdempotencyKey) == "" {
		return Entry{}, ErrInvalidArgument
	}
	if req.PayerID == "" || req.PayeeID == "" {
		return Entry{}, ErrInvalidArgument
	}
	if req.Amount.IsNegative() {
		return Entry{}, ErrInvalidArgument
	}
	if req.Status == "" {
		req.Status = EntryStatusPending
	}

	if existing, ok, err := s.repo.FindEntryByIdempotency(ctx, req.IdempotencyKey); err != nil {
		return Entry{}, err
	} else if ok {
		return existing, nil
	}

	e := Entry{
		ID:             uuid.NewString(),
		Type:           req.Type,
		Amount:         req.Amount.Round(2),
		Currency:       s.currency,
		PayerID:        req.PayerID,
		PayeeID:        req.PayeeID,
		InvoiceID:      req.InvoiceID,
		Status:         req.Status,
		IdempotencyKey: req.IdempotencyKey,
		Memo:           req.Memo,
		CreatedAt:      s.clock().UTC(),
	}
	if err := s.repo.InsertEntry(ctx, e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Reverse appends the offsetting entry for entryID. Reversing twice returns the
// first reversal.
func (s *Service) Reverse(ctx context.Context, entryID, memo string) (Entry, error) {
	orig, ok, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return Entry{}, err
	}
	if !ok {
		return Entry{}, ErrNotFound
	}
	if orig.ReversesEntryID != "" {
		return Entry{}, ErrInvalidArgument
	}
	if existing, ok, err := s.repo.FindReversal(ctx, entryID); err != nil {
		return Entry{}, err
	} else if ok {
		return existing, nil
	}

	e := Entry{
		ID:              uuid.NewString(),
		Type:            orig.Type,
		Amount:          orig.Amount.Neg(),
		Currency:        orig.Currency,
		PayerID:         orig.PayerID,
		PayeeID:         orig.PayeeID,
		InvoiceID:       orig.InvoiceID,
		Status:          orig.Status,
		IdempotencyKey:  "reverse:" + orig.ID,
		ReversesEntryID: orig.ID,
		Memo:            memo,
		CreatedAt:       s.clock().UTC(),
	}
	if err := s.repo.InsertEntry(ctx, e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// ReverseOpen reverses every pending entry of an invoice that has not been
// reversed yet.
func (s *Service) ReverseOpen(ctx context.Context, invoiceID, memo string) ([]Entry, error) {
	entries, err := s.repo.ListEntries(ctx, Filter{InvoiceID: invoiceID, Status: EntryStatusPending})
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range entries {
		if e.ReversesEntryID != "" {
			continue
		}
		r, err := s.Reverse(ctx, e.ID, memo)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (Entry, error) {
	e, ok, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Entry, error) {
	return s.repo.ListEntries(ctx, f)
}

// Sum totals the signed amounts of the matching entries.
func (s *Service) Sum(ctx context.Context, f Filter) (decimal.Decimal, error) {
	entries, err := s.repo.ListEntries(ctx, f)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total, nil
}

func (s *Service) Summary(ctx context.Context, from, to time.Time) (Summary, error) {
	if from.IsZero() || to.IsZero() || !to.After(from) {
		return Summary{}, ErrInvalidArgument
	}
	entries, err := s.repo.ListEntries(ctx, Filter{From: from, To: to})
	if err != nil {
		return Summary{}, err
	}
	out := Summary{From: from, To: to, ByType: map[EntryType]decimal.Decimal{}}
	for _, e := range entries {
		out.Entries++
		out.ByType[e.Type] = out.ByType[e.Type].Add(e.Amount)
		if e.ReversesEntryID != "" {
			out.Reversed = out.Reversed.Add(e.Amount.Neg())
		}
		switch e.Status {
		case EntryStatusPending:
			out.Pending = out.Pending.Add(e.Amount)
		case EntryStatusCompleted:
			out.Settled = out.Settled.Add(e.Amount)
		}
	}
	return out, nil
}
