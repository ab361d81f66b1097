package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"settlement-platform/internal/ledger"
	"settlement-platform/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("invoice: not found")
	ErrInvalidArgument   = errors.New("invoice: invalid argument")
	ErrNumberConflict    = errors.New("invoice: number already taken")
	ErrAlreadyPaid       = errors.New("invoice: already paid")
	ErrInvalidTransition = errors.New("invoice: invalid status transition")
	ErrNumbersExhausted  = errors.New("invoice: could not allocate a number")
)

// Repository abstracts invoice persistence.
type Repository interface {
	// NextInvoiceSequence returns the next value of the prefix+period sequence.
	NextInvoiceSequence(ctx context.Context, prefix, period string) (int64, error)
	// InsertInvoice fails with ErrNumberConflict when the number is already used.
	InsertInvoice(ctx context.Context, inv Invoice) error
	UpdateInvoice(ctx context.Context, inv Invoice) error
	GetInvoice(ctx context.Context, id string) (Invoice, bool, error)
	FindInvoiceByPurchaseRef(ctx context.Context, t Type, ref string) (Invoice, bool, error)
	ListInvoices(ctx context.Context, f Filter) ([]Invoice, error)
}

type Options struct {
	Currency string
	// Location is the business timezone used for the number's month segment.
	Location       *time.Location
	DueDays        int
	NumberAttempts int
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.DueDays <= 0 {
		o.DueDays = 30
	}
	if o.NumberAttempts <= 0 {
		o.NumberAttempts = 5
	}
	return o
}

// Service issues invoices and drives their payment lifecycle.
//
// Status flow: issued -> sent -> paid, with sent -> overdue -> paid when the
// due date passes. Any unpaid invoice may be cancelled.
type Service struct {
	repo   Repository
	ledger *ledger.Service
	opts   Options
	clock  func() time.Time
}

func NewService(repo Repository, lg *ledger.Service, opts Options) *Service {
	return &Service{repo: repo, ledger: lg, opts: opts.withDefaults(), clock: time.Now}
}

func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Issue numbers and stores a new invoice in status issued. A number conflict
// at insert is retried with the next sequence value.
func (s *Service) Issue(ctx context.Context, inv Invoice) (Invoice, error) {
	if err := validateAmounts(inv); err != nil {
		return Invoice{}, err
	}
	prefix, err := Prefix(inv.Type)
	if err != nil {
		return Invoice{}, err
	}

	now := s.clock().UTC()
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.Status = StatusIssued
	inv.IssuedAt = now
	inv.DueAt = now.AddDate(0, 0, s.opts.DueDays)
	inv.CreatedAt = now
	inv.UpdatedAt = now
	if inv.Currency == "" {
		inv.Currency = s.opts.Currency
	}

	local := now.In(s.opts.Location)
	for attempt := 0; attempt < s.opts.NumberAttempts; attempt++ {
		seq, err := s.repo.NextInvoiceSequence(ctx, prefix, SequencePeriod(local))
		if err != nil {
			return Invoice{}, err
		}
		inv.Number = FormatNumber(prefix, local, seq)
		err = s.repo.InsertInvoice(ctx, inv)
		if errors.Is(err, ErrNumberConflict) {
			continue
		}
		if err != nil {
			return Invoice{}, err
		}
		return inv, nil
	}
	return Invoice{}, ErrNumbersExhausted
}

func validateAmounts(inv Invoice) error {
	if inv.Type == TypeCustomer || inv.Type == TypePackagePurchase {
		if strings.TrimSpace(inv.CustomerID) == "" {
			return ErrInvalidArgument
		}
	}
	if inv.Type == TypeProducer && strings.TrimSpace(inv.ProducerID) == "" {
		return ErrInvalidArgument
	}
	if inv.Gross.IsNegative() {
		return ErrInvalidArgument
	}
	parts := inv.PhysicalAmount.Add(inv.DigitalAmount).Add(inv.MonthlyFee).Add(inv.PackageAmount)
	if !parts.Equal(inv.Gross) {
		return fmt.Errorf("%w: gross %s does not match its parts %s", ErrInvalidArgument, inv.Gross, parts)
	}
	if !inv.Gross.Sub(inv.GrossWithoutTax).Equal(inv.TaxAmount) {
		return fmt.Errorf("%w: tax %s does not match gross split", ErrInvalidArgument, inv.TaxAmount)
	}
	if len(inv.Breakdown) == 0 {
		return fmt.Errorf("%w: breakdown snapshot required", ErrInvalidArgument)
	}
	return nil
}

// MarkSent moves an issued invoice to sent.
func (s *Service) MarkSent(ctx context.Context, id string) (Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if inv.Status == StatusSent {
		return inv, nil
	}
	if inv.Status != StatusIssued {
		return Invoice{}, ErrInvalidTransition
	}
	inv.Status = StatusSent
	inv.UpdatedAt = s.clock().UTC()
	return inv, s.repo.UpdateInvoice(ctx, inv)
}

// Link points mirror at its source invoice. A source mirrored to several
// producers keeps its first counterpart.
func (s *Service) Link(ctx context.Context, source, mirror *Invoice) error {
	now := s.clock().UTC()
	mirror.CounterpartID = source.ID
	mirror.UpdatedAt = now
	if err := s.repo.UpdateInvoice(ctx, *mirror); err != nil {
		return err
	}
	if source.CounterpartID != "" {
		return nil
	}
	source.CounterpartID = mirror.ID
	source.UpdatedAt = now
	return s.repo.UpdateInvoice(ctx, *source)
}

// MarkAsPaid settles an invoice and records the completed payment.
// Repeating the call with the same reference is a no-op and reports changed=false.
func (s *Service) MarkAsPaid(ctx context.Context, id string, method pricing.PaymentMethod, reference string) (inv Invoice, changed bool, err error) {
	if strings.TrimSpace(reference) == "" {
		return Invoice{}, false, ErrInvalidArgument
	}
	if method != "" && !method.Valid() {
		return Invoice{}, false, ErrInvalidArgument
	}
	inv, err = s.Get(ctx, id)
	if err != nil {
		return Invoice{}, false, err
	}
	switch {
	case inv.Status == StatusPaid && inv.PaymentReference == reference:
		return inv, false, nil
	case inv.Status == StatusPaid:
		return Invoice{}, false, ErrAlreadyPaid
	case !inv.Status.Payable():
		return Invoice{}, false, ErrInvalidTransition
	}

	now := s.clock().UTC()
	inv.Status = StatusPaid
	inv.PaidAt = &now
	inv.PaymentReference = reference
	inv.LastPaymentError = ""
	if method != "" {
		inv.PaymentMethod = method
	}
	inv.UpdatedAt = now
	if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
		return Invoice{}, false, err
	}

	payer, payee := paymentParties(inv)
	if _, err := s.ledger.Append(ctx, ledger.AppendRequest{
		Type:           ledger.EntryTypePaymentReceived,
		Amount:         paymentAmount(inv),
		PayerID:        payer,
		PayeeID:        payee,
		InvoiceID:      inv.ID,
		Status:         ledger.EntryStatusCompleted,
		IdempotencyKey: "invoice:" + inv.ID + ":payment",
		Memo:           reference,
	}); err != nil {
		return Invoice{}, false, err
	}
	return inv, true, nil
}

func paymentParties(inv Invoice) (payer, payee string) {
	if inv.Type == TypeProducer {
		return ledger.PartyPlatform, inv.ProducerID
	}
	return inv.CustomerID, ledger.PartyPlatform
}

func paymentAmount(inv Invoice) decimal.Decimal {
	if inv.Type == TypeProducer {
		return inv.NetPayout
	}
	return inv.Gross
}

// MarkPaymentFailed records a gateway failure. The invoice stays payable.
func (s *Service) MarkPaymentFailed(ctx context.Context, id, reason string) (Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if inv.Status == StatusPaid {
		return Invoice{}, ErrAlreadyPaid
	}
	if !inv.Status.Payable() {
		return Invoice{}, ErrInvalidTransition
	}
	if strings.TrimSpace(reason) == "" {
		reason = "payment failed"
	}
	inv.LastPaymentError = reason
	inv.UpdatedAt = s.clock().UTC()
	return inv, s.repo.UpdateInvoice(ctx, inv)
}

// Cancel voids an unpaid invoice and offsets its pending ledger entries.
func (s *Service) Cancel(ctx context.Context, id, reason string) (Invoice, bool, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return Invoice{}, false, err
	}
	if inv.Status == StatusCancelled {
		return inv, false, nil
	}
	if inv.Status == StatusPaid {
		return Invoice{}, false, ErrInvalidTransition
	}
	inv.Status = StatusCancelled
	inv.CancelReason = reason
	inv.UpdatedAt = s.clock().UTC()
	if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
		return Invoice{}, false, err
	}
	if _, err := s.ledger.ReverseOpen(ctx, inv.ID, "cancelled: "+reason); err != nil {
		return Invoice{}, false, err
	}
	return inv, true, nil
}

// MarkOverdue flips issued and sent invoices past their due date to overdue.
func (s *Service) MarkOverdue(ctx context.Context, now time.Time) ([]Invoice, error) {
	due, err := s.repo.ListInvoices(ctx, Filter{
		Statuses:  []Status{StatusIssued, StatusSent},
		DueBefore: now,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Invoice, 0, len(due))
	for _, inv := range due {
		inv.Status = StatusOverdue
		inv.UpdatedAt = now.UTC()
		if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
			return out, err
		}
		out = append(out, inv)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (Invoice, error) {
	inv, ok, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return inv, nil
}

func (s *Service) FindByPurchaseRef(ctx context.Context, ref string) (Invoice, bool, error) {
	return s.repo.FindInvoiceByPurchaseRef(ctx, TypePackagePurchase, ref)
}

func (s *Service) List(ctx context.Context, f Filter) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, f)
}

// LastCustomerInvoice returns the most recent non-package customer invoice
// billing the period that starts at periodStart. Invoices of an earlier period
// issued late, when that period was closed, do not count.
func (s *Service) LastCustomerInvoice(ctx context.Context, customerID string, periodStart time.Time) (Invoice, bool, error) {
	invs, err := s.periodInvoices(ctx, customerID, periodStart)
	if err != nil {
		return Invoice{}, false, err
	}
	var last Invoice
	found := false
	for _, inv := range invs {
		if !found || inv.IssuedAt.After(last.IssuedAt) {
			last = inv
			found = true
		}
	}
	return last, found, nil
}

// MonthlyFeeCharged reports whether a live customer invoice of the period
// starting at periodStart already carries the monthly fee.
func (s *Service) MonthlyFeeCharged(ctx context.Context, customerID string, periodStart time.Time) (bool, error) {
	invs, err := s.periodInvoices(ctx, customerID, periodStart)
	if err != nil {
		return false, err
	}
	for _, inv := range invs {
		if inv.MonthlyFee.IsPositive() {
			return true, nil
		}
	}
	return false, nil
}

// periodInvoices lists the customer's uncancelled customer invoices for one
// period. They are all issued on or after the period start.
func (s *Service) periodInvoices(ctx context.Context, customerID string, periodStart time.Time) ([]Invoice, error) {
	invs, err := s.repo.ListInvoices(ctx, Filter{
		CustomerID: customerID,
		Types:      []Type{TypeCustomer},
		IssuedFrom: periodStart,
	})
	if err != nil {
		return nil, err
	}
	var out []Invoice
	for _, inv := range invs {
		if inv.Status != StatusCancelled && inv.PeriodStart.Equal(periodStart) {
			out = append(out, inv)
		}
	}
	return out, nil
}
