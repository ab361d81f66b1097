package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"settlement-platform/internal/fulfillment"
	"settlement-platform/internal/invoice"
	"settlement-platform/internal/pricing"
	"settlement-platform/internal/store"
	"settlement-platform/internal/subscription"
	"settlement-platform/pkg/logger"
)

const triggerPeriodClose = "period_close"

// errDryRun rolls back a period close that only previews its invoices.
var errDryRun = errors.New("billing: dry run")

type CloseReport struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	DryRun      bool      `json:"dry_run"`
	SweepReport
}

// ClosePeriod invoices every uninvoiced completed unit created in the month
// of month. Units created near the end of a month and completed after it are
// outside every later window; this is the pass that bills them.
//
// Each customer runs in its own transaction holding the closed month's lock,
// then the current month's. A dry run computes the same invoices and rolls
// them back.
func (s *Service) ClosePeriod(ctx context.Context, month time.Time, dryRun bool) (CloseReport, error) {
	now := s.clock().UTC()
	loc := s.opts.Location
	start := PeriodStart(month, loc)
	end := start.AddDate(0, 1, 0)
	if !start.Before(PeriodStart(now, loc)) {
		return CloseReport{}, fmt.Errorf("%w: period %s is still open", ErrInvalidArgument, start.Format("2006-01"))
	}
	log := logger.From(ctx).With("period", start.Format("2006-01"), "dry_run", dryRun)

	window := fulfillment.Query{
		From:         start,
		To:           end,
		ToExclusive:  true,
		TerminalOnly: true,
		Uninvoiced:   true,
	}
	var customers []string
	err := s.store.Read(ctx, func(ctx context.Context, tx store.Tx) error {
		units, err := tx.ListUnits(ctx, window)
		if err != nil {
			return err
		}
		seen := map[string]bool{}
		for _, u := range units {
			if u.UsageRecorded() && !u.Billable() {
				continue
			}
			if !seen[u.CustomerID] {
				seen[u.CustomerID] = true
				customers = append(customers, u.CustomerID)
			}
		}
		return nil
	})
	if err != nil {
		return CloseReport{}, err
	}
	sort.Strings(customers)

	rep := CloseReport{PeriodStart: start.UTC(), PeriodEnd: end.UTC(), DryRun: dryRun}
	rep.Customers = len(customers)
	for _, customerID := range customers {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		var (
			inv     *invoice.Invoice
			mirrors []invoice.Invoice
		)
		err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			for _, at := range []time.Time{start, now} {
				if err := tx.LockBillingKey(ctx, LockKey(customerID, at, loc)); err != nil {
					return err
				}
			}
			q := window
			q.CustomerID = customerID
			res, ms, err := s.closeCustomer(ctx, s.bind(tx), q, now)
			if err != nil {
				return err
			}
			inv, mirrors = res, ms
			if dryRun {
				return errDryRun
			}
			return nil
		})
		if errors.Is(err, errDryRun) {
			err = nil
		}
		if errors.Is(err, pricing.ErrConfigurationMissing) {
			log.Error("period close aborted", "err", err)
			return rep, err
		}
		if err != nil {
			rep.Failed++
			log.Error("period close failed for customer", "customer_id", customerID, "err", err)
			continue
		}
		if inv == nil {
			rep.Skipped++
			continue
		}
		rep.Invoices = append(rep.Invoices, *inv)
		rep.Mirrors += len(mirrors)
		if !dryRun {
			s.notify(ctx, created(append([]invoice.Invoice{*inv}, mirrors...)...))
		}
	}

	log.Info("period closed",
		"customers", rep.Customers,
		"invoices", len(rep.Invoices),
		"skipped", rep.Skipped,
		"failed", rep.Failed,
	)
	return rep, nil
}

// closeCustomer records usage for the window's units that were not counted
// yet and bills them in one invoice. The monthly fee of the closed period is
// added when no open invoice of that period carried it.
func (s *Service) closeCustomer(ctx context.Context, b bound, q fulfillment.Query, now time.Time) (*invoice.Invoice, []invoice.Invoice, error) {
	cfg, err := b.catalog.GetActive(ctx)
	if err != nil {
		return nil, nil, err
	}
	sub, persisted, err := b.subs.Load(ctx, q.CustomerID)
	if err != nil {
		return nil, nil, err
	}
	if !persisted {
		sub = subscription.PayPerUse(q.CustomerID, now)
	}

	units, err := b.tx.ListUnits(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	prices := subscription.Prices{Physical: cfg.PhysicalUnitPrice, Digital: cfg.DigitalUnitPrice}
	for i := range units {
		if units[i].UsageRecorded() {
			continue
		}
		b.subs.RecordUsage(&sub, &units[i], prices)
		if err := b.tx.SaveUnit(ctx, units[i]); err != nil {
			return nil, nil, err
		}
	}
	if persisted {
		if err := b.subs.Save(ctx, sub); err != nil {
			return nil, nil, err
		}
	}

	bt := billableBatch(q.CustomerID, units)
	if len(bt.lines) == 0 {
		return nil, nil, nil
	}
	if bt.fee, err = s.feeDue(ctx, b, cfg, sub, q.From); err != nil {
		return nil, nil, err
	}
	bt.period = invoice.Period{Start: q.From.UTC(), End: q.To.UTC()}
	bt.trigger = triggerPeriodClose
	return s.issueBatch(ctx, b, cfg, bt, now)
}
