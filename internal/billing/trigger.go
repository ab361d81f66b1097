package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"settlement-platform/internal/fulfillment"
	"settlement-platform/internal/invoice"
	"settlement-platform/internal/ledger"
	"settlement-platform/internal/pricing"
	"settlement-platform/internal/settlement"
	"settlement-platform/internal/store"
	"settlement-platform/internal/subscription"
	"settlement-platform/pkg/logger"

	"github.com/shopspring/decimal"
)

const (
	ReasonNotTerminal          = "unit has not reached a completed state"
	ReasonNothingToBill        = "no billable units in the current window"
	ReasonConfigurationMissing = "no active pricing configuration"
)

const (
	triggerFulfillment = "fulfillment_event"
	triggerSweep       = "sweep"
	triggerPackage     = "package_purchase"
)

// Outcome reports what an invoicing attempt did. A skipped attempt is not an
// error: a repeated event, or a unit already covered by an earlier invoice,
// ends here.
type Outcome struct {
	Skipped  bool
	Reason   string
	Invoice  *invoice.Invoice
	Mirrors  []invoice.Invoice
	Decision subscription.ChargeDecision
}

// HandleFulfillmentEvent records the unit from ev and, when it reached
// completed or delivered, invoices the customer's uninvoiced units for the
// current period.
//
// A missing pricing configuration does not fail the caller: the unit is
// stored without usage and the next sweep picks it up.
func (s *Service) HandleFulfillmentEvent(ctx context.Context, ev fulfillment.Event) (Outcome, error) {
	if err := ev.Validate(); err != nil {
		return Outcome{}, err
	}
	log := logger.From(ctx).With("customer_id", ev.CustomerID, "unit_id", ev.UnitID)
	now := s.clock().UTC()

	var out Outcome
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.LockBillingKey(ctx, LockKey(ev.CustomerID, now, s.opts.Location)); err != nil {
			return err
		}
		unit, err := s.applyEvent(ctx, tx, ev, now)
		if err != nil {
			return err
		}
		if !unit.Status.TerminalSuccess() {
			out = Outcome{Skipped: true, Reason: ReasonNotTerminal}
			return nil
		}

		res, err := s.settleCustomer(ctx, s.bind(tx), ev.CustomerID, now, triggerFulfillment, unit.ID)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if errors.Is(err, pricing.ErrConfigurationMissing) {
		log.Error("invoice not created", "err", err)
		if err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return s.recordUnit(ctx, tx, ev, now)
		}); err != nil {
			return Outcome{}, err
		}
		return Outcome{Skipped: true, Reason: ReasonConfigurationMissing}, nil
	}
	if err != nil {
		return Outcome{}, err
	}

	if out.Invoice != nil {
		log.Info("invoice created",
			"invoice_number", out.Invoice.Number,
			"gross", out.Invoice.Gross.StringFixed(2),
			"mirrors", len(out.Mirrors),
		)
		s.notify(ctx, created(append([]invoice.Invoice{*out.Invoice}, out.Mirrors...)...))
	} else if out.Skipped {
		log.Debug("invoice skipped", "reason", out.Reason)
	}
	return out, nil
}

// applyEvent merges ev into the stored unit and saves it. The caller holds the
// customer's billing lock.
func (s *Service) applyEvent(ctx context.Context, tx store.Tx, ev fulfillment.Event, now time.Time) (fulfillment.Unit, error) {
	existing, ok, err := tx.GetUnit(ctx, ev.UnitID)
	if err != nil {
		return fulfillment.Unit{}, err
	}
	if ok && existing.CustomerID != ev.CustomerID {
		return fulfillment.Unit{}, fmt.Errorf("%w: unit %s belongs to another customer", ErrInvalidArgument, ev.UnitID)
	}
	unit := ev.Apply(existing, now)
	return unit, tx.SaveUnit(ctx, unit)
}

// recordUnit stores the unit of an event that could not be invoiced. The unit
// is re-read under the lock so a concurrent transition is not overwritten.
func (s *Service) recordUnit(ctx context.Context, tx store.Tx, ev fulfillment.Event, now time.Time) error {
	if err := tx.LockBillingKey(ctx, LockKey(ev.CustomerID, now, s.opts.Location)); err != nil {
		return err
	}
	_, err := s.applyEvent(ctx, tx, ev, now)
	return err
}

// settleCustomer records usage for the customer's completed units that were
// not counted yet, then invoices everything billable in the window. It must
// run under the customer's billing lock. triggerUnitID may be empty.
func (s *Service) settleCustomer(ctx context.Context, b bound, customerID string, now time.Time, trigger, triggerUnitID string) (Outcome, error) {
	cfg, err := b.catalog.GetActive(ctx)
	if err != nil {
		return Outcome{}, err
	}

	sub, persisted, err := b.subs.Load(ctx, customerID)
	if err != nil {
		return Outcome{}, err
	}
	if !persisted {
		sub = subscription.PayPerUse(customerID, now)
	}

	pending, err := b.tx.ListUnits(ctx, fulfillment.Query{
		CustomerID:   customerID,
		To:           now,
		TerminalOnly: true,
		Uninvoiced:   true,
	})
	if err != nil {
		return Outcome{}, err
	}
	prices := subscription.Prices{Physical: cfg.PhysicalUnitPrice, Digital: cfg.DigitalUnitPrice}
	var decision subscription.ChargeDecision
	for i := range pending {
		u := pending[i]
		if u.UsageRecorded() {
			if u.ID == triggerUnitID {
				decision = b.subs.RecordUsage(&sub, &u, prices)
			}
			continue
		}
		d := b.subs.RecordUsage(&sub, &u, prices)
		if u.ID == triggerUnitID {
			decision = d
		}
		if err := b.tx.SaveUnit(ctx, u); err != nil {
			return Outcome{}, err
		}
	}

	inv, mirrors, err := s.invoiceCustomer(ctx, b, cfg, &sub, now, trigger, triggerUnitID)
	if err != nil {
		return Outcome{}, err
	}
	if persisted {
		if err := b.subs.Save(ctx, sub); err != nil {
			return Outcome{}, err
		}
	}
	if inv == nil {
		return Outcome{Skipped: true, Reason: ReasonNothingToBill, Decision: decision}, nil
	}
	return Outcome{Invoice: inv, Mirrors: mirrors, Decision: decision}, nil
}

// invoiceCustomer bills the window since the customer's last invoice of the
// period. It returns a nil invoice when nothing is billable.
func (s *Service) invoiceCustomer(ctx context.Context, b bound, cfg pricing.Configuration, sub *subscription.Subscription, now time.Time, trigger, triggerUnitID string) (*invoice.Invoice, []invoice.Invoice, error) {
	customerID := sub.CustomerID
	periodStart := PeriodStart(now, s.opts.Location)

	q := fulfillment.Query{
		CustomerID:   customerID,
		From:         periodStart,
		To:           now,
		TerminalOnly: true,
		Uninvoiced:   true,
	}
	last, ok, err := b.invoices.LastCustomerInvoice(ctx, customerID, periodStart)
	if err != nil {
		return nil, nil, err
	}
	if ok {
		q.From = last.IssuedAt
		q.FromExclusive = true
	}
	units, err := b.tx.ListUnits(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	bt := billableBatch(customerID, units)
	if len(bt.lines) == 0 {
		return nil, nil, nil
	}
	if bt.fee, err = s.monthlyFee(ctx, b, cfg, *sub, periodStart); err != nil {
		return nil, nil, err
	}
	bt.period = invoice.Period{Start: periodStart.UTC(), End: now}
	bt.trigger, bt.triggerUnitID = trigger, triggerUnitID

	inv, mirrors, err := s.issueBatch(ctx, b, cfg, bt, now)
	if err != nil {
		return nil, nil, err
	}
	if bt.fee.IsPositive() {
		sub.MonthlyFeePaid = true
	}
	return inv, mirrors, nil
}

// batch is one customer invoice in the making.
type batch struct {
	customerID    string
	lines         []settlement.Line
	units         []fulfillment.Unit
	fee           decimal.Decimal
	period        invoice.Period
	trigger       string
	triggerUnitID string
}

// billableBatch keeps the units that carry a charge.
func billableBatch(customerID string, units []fulfillment.Unit) batch {
	bt := batch{customerID: customerID}
	for _, u := range units {
		if !u.Billable() {
			continue
		}
		kind := settlement.KindPhysical
		if u.DigitalOnly() {
			kind = settlement.KindDigital
		}
		bt.lines = append(bt.lines, settlement.Line{UnitID: u.ID, ProducerID: u.ProducerID, Kind: kind, Amount: *u.PriceSnapshot})
		bt.units = append(bt.units, u)
	}
	return bt
}

// issueBatch settles bt, issues the customer invoice with its ledger charge,
// marks the units invoiced and mirrors every physical producer group.
func (s *Service) issueBatch(ctx context.Context, b bound, cfg pricing.Configuration, bt batch, now time.Time) (*invoice.Invoice, []invoice.Invoice, error) {
	rates := settlement.RatesFrom(cfg, s.opts.DefaultMethod, s.opts.NetBasis)
	res, err := settlement.Calculate(settlement.Input{Lines: bt.lines, MonthlyFee: bt.fee, Rates: rates})
	if err != nil {
		return nil, nil, err
	}

	bd := invoice.CustomerBreakdown(res, bt.period)
	bd.AutoCreated = true
	bd.Trigger = bt.trigger
	bd.TriggerUnitID = bt.triggerUnitID

	inv, err := s.issue(ctx, b, invoice.Invoice{Type: invoice.TypeCustomer, CustomerID: bt.customerID}, bd, rates)
	if err != nil {
		return nil, nil, err
	}
	for _, u := range bt.units {
		u.InvoiceID = inv.ID
		u.UpdatedAt = now
		if err := b.tx.SaveUnit(ctx, u); err != nil {
			return nil, nil, err
		}
	}
	if _, err := b.ledger.Append(ctx, ledger.AppendRequest{
		Type:           ledger.EntryTypeCustomerCharge,
		Amount:         inv.Gross,
		PayerID:        bt.customerID,
		PayeeID:        ledger.PartyPlatform,
		InvoiceID:      inv.ID,
		Status:         ledger.EntryStatusPending,
		IdempotencyKey: "invoice:" + inv.ID + ":charge",
		Memo:           inv.Number,
	}); err != nil {
		return nil, nil, err
	}

	var mirrors []invoice.Invoice
	for _, g := range res.Groups {
		if !g.HasPhysical() {
			continue
		}
		gb := invoice.GroupBreakdown(g, rates, bt.period)
		gb.AutoCreated = true
		gb.Trigger = bt.trigger
		gb.TriggerUnitID = bt.triggerUnitID
		m, err := s.mirror(ctx, b, &inv, g.ProducerID, gb, rates)
		if err != nil {
			return nil, nil, err
		}
		mirrors = append(mirrors, m)
	}
	return &inv, mirrors, nil
}

// monthlyFee is due once per customer per month. The subscription flag covers
// stored subscriptions; pay-per-use customers are checked against their
// invoices of the period.
func (s *Service) monthlyFee(ctx context.Context, b bound, cfg pricing.Configuration, sub subscription.Subscription, periodStart time.Time) (decimal.Decimal, error) {
	if sub.MonthlyFeePaid {
		return decimal.Zero, nil
	}
	return s.feeDue(ctx, b, cfg, sub, periodStart)
}

// feeDue returns the customer's monthly fee unless an open invoice of the
// period already carries it.
func (s *Service) feeDue(ctx context.Context, b bound, cfg pricing.Configuration, sub subscription.Subscription, periodStart time.Time) (decimal.Decimal, error) {
	charged, err := b.invoices.MonthlyFeeCharged(ctx, sub.CustomerID, periodStart)
	if err != nil || charged {
		return decimal.Zero, err
	}
	fee := cfg.MonthlyFee
	if sub.PlanID != "" {
		plan, ok, err := b.tx.GetPlan(ctx, sub.PlanID)
		if err != nil {
			return decimal.Zero, err
		}
		if ok && plan.MonthlyFee != nil {
			fee = *plan.MonthlyFee
		}
	}
	return fee.Round(2), nil
}

// issue stores inv with the totals of bd and moves it to sent.
func (s *Service) issue(ctx context.Context, b bound, inv invoice.Invoice, bd invoice.Breakdown, rates settlement.Rates) (invoice.Invoice, error) {
	raw, err := bd.Encode()
	if err != nil {
		return invoice.Invoice{}, err
	}
	inv.Breakdown = raw
	inv.ApplyTotals(bd, rates)
	issued, err := b.invoices.Issue(ctx, inv)
	if err != nil {
		return invoice.Invoice{}, err
	}
	return b.invoices.MarkSent(ctx, issued.ID)
}

// mirror issues the producer side of source and books the payout.
func (s *Service) mirror(ctx context.Context, b bound, source *invoice.Invoice, producerID string, bd invoice.Breakdown, rates settlement.Rates) (invoice.Invoice, error) {
	m, err := s.issue(ctx, b, invoice.Invoice{
		Type:       invoice.TypeProducer,
		CustomerID: source.CustomerID,
		ProducerID: producerID,
	}, bd, rates)
	if err != nil {
		return invoice.Invoice{}, err
	}
	if err := b.invoices.Link(ctx, source, &m); err != nil {
		return invoice.Invoice{}, err
	}
	if _, err := b.ledger.Append(ctx, ledger.AppendRequest{
		Type:           ledger.EntryTypeProducerPayout,
		Amount:         m.NetPayout,
		PayerID:        ledger.PartyPlatform,
		PayeeID:        producerID,
		InvoiceID:      m.ID,
		Status:         ledger.EntryStatusPending,
		IdempotencyKey: "invoice:" + m.ID + ":payout",
		Memo:           m.Number,
	}); err != nil {
		return invoice.Invoice{}, err
	}
	return m, nil
}
