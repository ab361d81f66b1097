package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"settlement-platform/internal/audit"
	"settlement-platform/internal/fulfillment"
	"settlement-platform/internal/invoice"
	"settlement-platform/internal/ledger"
	"settlement-platform/internal/pricing"
	"settlement-platform/internal/store"
	"settlement-platform/internal/subscription"
	"settlement-platform/pkg/logger"

	"github.com/google/uuid"
)

// Operator actions. Each one writes an audit event in the same transaction.

func (s *Service) CreatePricing(ctx context.Context, actor audit.Actor, c pricing.Configuration) (pricing.Configuration, error) {
	var out pricing.Configuration
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		b := s.bind(tx)
		created, err := b.catalog.Create(ctx, c)
		if err != nil {
			return err
		}
		out = created
		return b.audit.Log(ctx, actor, audit.EventTypePricingCreated, created.ID, created.Name, "")
	})
	return out, err
}

func (s *Service) ActivatePricing(ctx context.Context, actor audit.Actor, id string) (pricing.Configuration, error) {
	var out pricing.Configuration
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		b := s.bind(tx)
		c, err := b.catalog.Activate(ctx, id)
		if err != nil {
			return err
		}
		out = c
		return b.audit.Log(ctx, actor, audit.EventTypePricingActivated, c.ID, c.Name, "")
	})
	if err == nil {
		logger.From(ctx).Info("pricing activated", "config_id", out.ID, "name", out.Name)
	}
	return out, err
}

// SeedDefaultPricing creates and activates the default configuration unless
// one is already active. created reports whether anything was written.
func (s *Service) SeedDefaultPricing(ctx context.Context, actor audit.Actor) (cfg pricing.Configuration, created bool, err error) {
	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		b := s.bind(tx)
		if active, ok, err := tx.ActiveConfiguration(ctx); err != nil {
			return err
		} else if ok {
			cfg = active
			return nil
		}
		c, err := b.catalog.Create(ctx, pricing.Default(s.clock().UTC()))
		if err != nil {
			return err
		}
		if c, err = b.catalog.Activate(ctx, c.ID); err != nil {
			return err
		}
		cfg, created = c, true
		return b.audit.Log(ctx, actor, audit.EventTypePricingActivated, c.ID, "default pricing seeded", "")
	})
	return cfg, created, err
}

// SavePlan stores a subscription plan. Package plans need credits and a price.
func (s *Service) SavePlan(ctx context.Context, p subscription.Plan) (subscription.Plan, error) {
	if strings.TrimSpace(p.Name) == "" {
		return subscription.Plan{}, fmt.Errorf("%w: plan name is required", ErrInvalidArgument)
	}
	switch p.Type {
	case subscription.PlanTypePackage:
		if p.PackageCredits <= 0 || !p.PackagePrice.IsPositive() {
			return subscription.Plan{}, fmt.Errorf("%w: package plans need credits and a price", ErrInvalidArgument)
		}
	case subscription.PlanTypeStandard:
	default:
		return subscription.Plan{}, fmt.Errorf("%w: unknown plan type %q", ErrInvalidArgument, p.Type)
	}
	if p.MonthlyFee != nil && p.MonthlyFee.IsNegative() {
		return subscription.Plan{}, fmt.Errorf("%w: negative monthly fee", ErrInvalidArgument)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.clock().UTC()
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.SavePlan(ctx, p)
	})
	return p, err
}

// CancelInvoice cancels an unpaid invoice together with its unpaid producer
// mirrors and offsets their pending ledger entries. Cancelling a package
// purchase takes back its credits and is refused once any of them was used.
// Cancelling a current-period invoice that carried the monthly fee makes the
// fee due again.
func (s *Service) CancelInvoice(ctx context.Context, actor audit.Actor, id, reason string) (invoice.Invoice, error) {
	if strings.TrimSpace(reason) == "" {
		return invoice.Invoice{}, fmt.Errorf("%w: reason is required", ErrInvalidArgument)
	}
	now := s.clock().UTC()
	var out invoice.Invoice
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		b := s.bind(tx)
		current, err := b.invoices.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.CustomerID != "" {
			if err := tx.LockBillingKey(ctx, LockKey(current.CustomerID, now, s.opts.Location)); err != nil {
				return err
			}
		}
		inv, changed, err := b.invoices.Cancel(ctx, id, reason)
		if err != nil {
			return err
		}
		out = inv
		if !changed {
			return nil
		}
		if err := s.releaseSubscription(ctx, b, inv, now); err != nil {
			return err
		}
		if inv.Type != invoice.TypeProducer {
			mirrors, err := b.invoices.List(ctx, invoice.Filter{
				CustomerID: inv.CustomerID,
				Types:      []invoice.Type{invoice.TypeProducer},
			})
			if err != nil {
				return err
			}
			for _, m := range mirrors {
				if m.CounterpartID != inv.ID || m.Status == invoice.StatusPaid {
					continue
				}
				if _, _, err := b.invoices.Cancel(ctx, m.ID, reason); err != nil {
					return err
				}
			}
		}
		return b.audit.Log(ctx, actor, audit.EventTypeInvoiceCancelled, inv.ID, reason, inv.Number)
	})
	if err == nil && out.Status == invoice.StatusCancelled {
		logger.From(ctx).Info("invoice cancelled", "invoice_number", out.Number, "type", out.Type)
	}
	return out, err
}

// releaseSubscription undoes what a cancelled invoice did to its customer's
// subscription.
func (s *Service) releaseSubscription(ctx context.Context, b bound, inv invoice.Invoice, now time.Time) error {
	switch {
	case inv.Type == invoice.TypePackagePurchase:
	case inv.Type == invoice.TypeCustomer && inv.MonthlyFee.IsPositive():
		if !inv.PeriodStart.Equal(PeriodStart(now, s.opts.Location)) {
			return nil
		}
	default:
		return nil
	}

	sub, ok, err := b.subs.Load(ctx, inv.CustomerID)
	if err != nil || !ok {
		return err
	}
	if inv.Type == invoice.TypeCustomer {
		if !sub.MonthlyFeePaid {
			return nil
		}
		sub.MonthlyFeePaid = false
		return b.subs.Save(ctx, sub)
	}

	credits, err := s.packageCredits(ctx, b, inv, sub)
	if err != nil {
		return err
	}
	if err := subscription.RevokePackage(&sub, credits); err != nil {
		return err
	}
	return b.subs.Save(ctx, sub)
}

// packageCredits reads the credits a package invoice granted. Invoices issued
// before the breakdown carried them fall back to the plan.
func (s *Service) packageCredits(ctx context.Context, b bound, inv invoice.Invoice, sub subscription.Subscription) (int, error) {
	bd, err := invoice.DecodeBreakdown(inv.Breakdown)
	if err != nil {
		return 0, err
	}
	if bd.Services.PackageCredits > 0 {
		return bd.Services.PackageCredits, nil
	}
	planID := bd.Services.PackagePlanID
	if planID == "" {
		planID = sub.PlanID
	}
	plan, err := b.subs.Plan(ctx, planID)
	if err != nil {
		return 0, err
	}
	return plan.PackageCredits, nil
}

func (s *Service) ReverseEntry(ctx context.Context, actor audit.Actor, entryID, memo string) (ledger.Entry, error) {
	if strings.TrimSpace(memo) == "" {
		return ledger.Entry{}, fmt.Errorf("%w: memo is required", ErrInvalidArgument)
	}
	var out ledger.Entry
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		b := s.bind(tx)
		e, err := b.ledger.Reverse(ctx, entryID, memo)
		if err != nil {
			return err
		}
		out = e
		return b.audit.Log(ctx, actor, audit.EventTypeLedgerReversed, entryID, memo, e.ID)
	})
	return out, err
}

// RecalculateUsage resets a package customer's used credits to the physical
// units created since their last package purchase.
func (s *Service) RecalculateUsage(ctx context.Context, actor audit.Actor, customerID string) (subscription.Subscription, error) {
	if strings.TrimSpace(customerID) == "" {
		return subscription.Subscription{}, fmt.Errorf("%w: customer is required", ErrInvalidArgument)
	}
	now := s.clock().UTC()
	var out subscription.Subscription
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.LockBillingKey(ctx, LockKey(customerID, now, s.opts.Location)); err != nil {
			return err
		}
		b := s.bind(tx)
		sub, ok, err := b.subs.Load(ctx, customerID)
		if err != nil {
			return err
		}
		if !ok {
			return subscription.ErrNotFound
		}

		purchases, err := b.invoices.List(ctx, invoice.Filter{
			CustomerID: customerID,
			Types:      []invoice.Type{invoice.TypePackagePurchase},
		})
		if err != nil {
			return err
		}
		var since invoice.Invoice
		for _, p := range purchases {
			if p.Status != invoice.StatusCancelled && p.IssuedAt.After(since.IssuedAt) {
				since = p
			}
		}
		if since.ID == "" {
			return fmt.Errorf("%w: customer has no package purchase", ErrInvalidArgument)
		}

		units, err := tx.ListUnits(ctx, fulfillment.Query{
			CustomerID:   customerID,
			From:         since.IssuedAt,
			PhysicalOnly: true,
		})
		if err != nil {
			return err
		}
		n := 0
		for _, u := range units {
			if u.Status != fulfillment.StatusCancelled {
				n++
			}
		}
		before := sub.PackageCreditsUsed
		subscription.RecalculateUsage(&sub, n)
		if err := b.subs.Save(ctx, sub); err != nil {
			return err
		}
		out = sub
		return b.audit.Log(ctx, actor, audit.EventTypeUsageRecalculated, customerID,
			fmt.Sprintf("credits used %d -> %d", before, sub.PackageCreditsUsed), since.ID)
	})
	return out, err
}

// TriggerSweep records who asked for an out-of-schedule sweep and runs it.
func (s *Service) TriggerSweep(ctx context.Context, actor audit.Actor) (SweepReport, error) {
	if err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return s.bind(tx).audit.Log(ctx, actor, audit.EventTypeSweepTriggered, "", "manual sweep", "")
	}); err != nil {
		return SweepReport{}, err
	}
	return s.Sweep(ctx)
}

// CloseMonth records who closed a billing month and runs the close. Dry runs
// are not audited.
func (s *Service) CloseMonth(ctx context.Context, actor audit.Actor, month time.Time, dryRun bool) (CloseReport, error) {
	rep, err := s.ClosePeriod(ctx, month, dryRun)
	if err != nil || dryRun {
		return rep, err
	}
	period := rep.PeriodStart.In(s.opts.Location).Format("2006-01")
	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return s.bind(tx).audit.Log(ctx, actor, audit.EventTypePeriodClosed, period,
			fmt.Sprintf("%d invoices, %d failed", len(rep.Invoices), rep.Failed), "")
	})
	return rep, err
}
