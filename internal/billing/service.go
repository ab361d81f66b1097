// Package billing turns fulfillment events into invoices.
//
// Every invoicing path runs inside one store transaction that holds the
// (customer, month) billing lock, so credit consumption, unit transitions,
// invoices and ledger entries commit together. Notifications go out only
// after commit.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"settlement-platform/internal/audit"
	"settlement-platform/internal/invoice"
	"settlement-platform/internal/ledger"
	"settlement-platform/internal/notify"
	"settlement-platform/internal/payment"
	"settlement-platform/internal/pricing"
	"settlement-platform/internal/settlement"
	"settlement-platform/internal/store"
	"settlement-platform/internal/subscription"
)

var (
	ErrInvalidArgument    = errors.New("billing: invalid argument")
	ErrGatewayUnavailable = errors.New("billing: payment gateway not configured")
)

type Options struct {
	// Location is the business timezone. Billing periods are its calendar months.
	Location       *time.Location
	Currency       string
	NetBasis       settlement.NetBasis
	DueDays        int
	NumberAttempts int
	// DefaultMethod is the payment method assumed for automatic invoices.
	DefaultMethod pricing.PaymentMethod
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Currency == "" {
		o.Currency = "TRY"
	}
	if o.NetBasis == "" {
		o.NetBasis = settlement.NetBasisGross
	}
	if o.DefaultMethod == "" {
		o.DefaultMethod = pricing.MethodCard
	}
	return o
}

type Service struct {
	store    store.Store
	notifier *notify.Dispatcher
	gateway  payment.Gateway
	opts     Options
	clock    func() time.Time
}

// NewService wires billing over st. notifier and gateway may be nil.
func NewService(st store.Store, notifier *notify.Dispatcher, gateway payment.Gateway, opts Options) *Service {
	return &Service{
		store:    st,
		notifier: notifier,
		gateway:  gateway,
		opts:     opts.withDefaults(),
		clock:    time.Now,
	}
}

func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

func (s *Service) Location() *time.Location { return s.opts.Location }

// domain services bound to one transaction
type bound struct {
	tx       store.Tx
	catalog  *pricing.Catalog
	subs     *subscription.Ledger
	invoices *invoice.Service
	ledger   *ledger.Service
	audit    *audit.Service
}

func (s *Service) bind(tx store.Tx) bound {
	lg := ledger.NewService(tx, s.opts.Currency).WithClock(s.clock)
	return bound{
		tx:      tx,
		catalog: pricing.NewCatalog(tx).WithClock(s.clock),
		subs:    subscription.NewLedger(tx, s.opts.Location).WithClock(s.clock),
		invoices: invoice.NewService(tx, lg, invoice.Options{
			Currency:       s.opts.Currency,
			Location:       s.opts.Location,
			DueDays:        s.opts.DueDays,
			NumberAttempts: s.opts.NumberAttempts,
		}).WithClock(s.clock),
		ledger: lg,
		audit:  audit.NewService(tx).WithClock(s.clock),
	}
}

// PeriodStart is the first instant of now's month in loc.
func PeriodStart(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
}

// LockKey names the serialization unit for a customer's billing month.
func LockKey(customerID string, now time.Time, loc *time.Location) string {
	return fmt.Sprintf("billing:%s:%s", customerID, now.In(loc).Format("200601"))
}

func (s *Service) notify(ctx context.Context, build func(*notify.Dispatcher) []notify.Message) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(ctx, build(s.notifier)...)
}

func created(invs ...invoice.Invoice) func(*notify.Dispatcher) []notify.Message {
	return func(d *notify.Dispatcher) []notify.Message {
		out := make([]notify.Message, 0, len(invs))
		for _, inv := range invs {
			out = append(out, d.InvoiceCreated(inv))
		}
		return out
	}
}
