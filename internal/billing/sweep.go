package billing

import (
	"context"
	"errors"
	"sort"

	"settlement-platform/internal/fulfillment"
	"settlement-platform/internal/invoice"
	"settlement-platform/internal/pricing"
	"settlement-platform/internal/store"
	"settlement-platform/pkg/logger"
)

type SweepReport struct {
	Customers int               `json:"customers"`
	Invoices  []invoice.Invoice `json:"invoices"`
	Mirrors   int               `json:"mirrors"`
	Skipped   int               `json:"skipped"`
	Failed    int               `json:"failed"`
}

// Sweep invoices every customer with unbilled completed units in the current
// period. Each customer runs through the same locked path as a fulfillment
// event; a failure for one customer does not stop the others.
func (s *Service) Sweep(ctx context.Context) (SweepReport, error) {
	now := s.clock().UTC()
	log := logger.From(ctx)

	var customers []string
	err := s.store.Read(ctx, func(ctx context.Context, tx store.Tx) error {
		units, err := tx.ListUnits(ctx, fulfillment.Query{
			To:           now,
			TerminalOnly: true,
			Uninvoiced:   true,
		})
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
		return SweepReport{}, err
	}
	sort.Strings(customers)

	rep := SweepReport{Customers: len(customers)}
	for _, customerID := range customers {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		var out Outcome
		err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := tx.LockBillingKey(ctx, LockKey(customerID, now, s.opts.Location)); err != nil {
				return err
			}
			res, err := s.settleCustomer(ctx, s.bind(tx), customerID, now, triggerSweep, "")
			if err != nil {
				return err
			}
			out = res
			return nil
		})
		if errors.Is(err, pricing.ErrConfigurationMissing) {
			log.Error("sweep aborted", "err", err)
			return rep, err
		}
		if err != nil {
			rep.Failed++
			log.Error("sweep failed for customer", "customer_id", customerID, "err", err)
			continue
		}
		if out.Invoice == nil {
			rep.Skipped++
			continue
		}
		rep.Invoices = append(rep.Invoices, *out.Invoice)
		rep.Mirrors += len(out.Mirrors)
		s.notify(ctx, created(append([]invoice.Invoice{*out.Invoice}, out.Mirrors...)...))
	}

	log.Info("sweep finished",
		"customers", rep.Customers,
		"invoices", len(rep.Invoices),
		"skipped", rep.Skipped,
		"failed", rep.Failed,
	)
	return rep, nil
}

// MarkOverdue flips issued and sent invoices past their due date to overdue.
func (s *Service) MarkOverdue(ctx context.Context) ([]invoice.Invoice, error) {
	now := s.clock().UTC()
	var out []invoice.Invoice
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		res, err := s.bind(tx).invoices.MarkOverdue(ctx, now)
		out = res
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(out) > 0 {
		logger.From(ctx).Info("invoices overdue", "count", len(out))
	}
	return out, nil
}
