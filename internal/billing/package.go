package billing

import (
	"context"
	"fmt"
	"strings"

	"settlement-platform/internal/audit"
	"settlement-platform/internal/invoice"
	"settlement-platform/internal/ledger"
	"settlement-platform/internal/pricing"
	"settlement-platform/internal/settlement"
	"settlement-platform/internal/store"
	"settlement-platform/internal/subscription"
	"settlement-platform/pkg/logger"

	"github.com/shopspring/decimal"
)

type PackagePurchase struct {
	CustomerID    string                `json:"customer_id"`
	ProducerID    string                `json:"producer_id"`
	PlanID        string                `json:"package_plan_id"`
	Price         decimal.Decimal       `json:"price"`
	PaymentMethod pricing.PaymentMethod `json:"payment_method"`
	PurchaseRef   string                `json:"purchase_ref"`
}

func (r PackagePurchase) validate() error {
	if strings.TrimSpace(r.CustomerID) == "" || strings.TrimSpace(r.ProducerID) == "" {
		return fmt.Errorf("%w: customer and producer are required", ErrInvalidArgument)
	}
	if strings.TrimSpace(r.PlanID) == "" || strings.TrimSpace(r.PurchaseRef) == "" {
		return fmt.Errorf("%w: plan and purchase reference are required", ErrInvalidArgument)
	}
	if !r.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidArgument)
	}
	if r.PaymentMethod != "" && !r.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidArgument, r.PaymentMethod)
	}
	return nil
}

type PackageResult struct {
	Invoice invoice.Invoice
	Mirror  invoice.Invoice
	// Created is false when the purchase reference was already invoiced.
	Created bool
}

// PurchasePackage invoices a package, grants its credits and mirrors the
// payout to the producer. A purchase reference is invoiced at most once.
func (s *Service) PurchasePackage(ctx context.Context, actor audit.Actor, req PackagePurchase) (PackageResult, error) {
	if err := req.validate(); err != nil {
		return PackageResult{}, err
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = s.opts.DefaultMethod
	}
	now := s.clock().UTC()

	var out PackageResult
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.LockBillingKey(ctx, LockKey(req.CustomerID, now, s.opts.Location)); err != nil {
			return err
		}
		b := s.bind(tx)

		existing, ok, err := b.invoices.FindByPurchaseRef(ctx, req.PurchaseRef)
		if err != nil {
			return err
		}
		if ok {
			if existing.CustomerID != req.CustomerID {
				return fmt.Errorf("%w: purchase reference already used", ErrInvalidArgument)
			}
			out.Invoice = existing
			if existing.CounterpartID != "" {
				if m, err := b.invoices.Get(ctx, existing.CounterpartID); err == nil {
					out.Mirror = m
				}
			}
			return nil
		}

		plan, err := b.subs.Plan(ctx, req.PlanID)
		if err != nil {
			return err
		}
		if plan.Type != subscription.PlanTypePackage {
			return fmt.Errorf("%w: plan %s is not a package", ErrInvalidArgument, plan.ID)
		}
		cfg, err := b.catalog.GetActive(ctx)
		if err != nil {
			return err
		}
		rates := settlement.RatesFrom(cfg, req.PaymentMethod, s.opts.NetBasis)
		price := req.Price.Round(2)
		res, group, err := settlement.Package(req.ProducerID, price, rates)
		if err != nil {
			return err
		}

		period := invoice.Period{Start: now, End: now}
		bd := invoice.CustomerBreakdown(res, period)
		bd.Trigger = triggerPackage
		bd.Services.PackageCredits = plan.PackageCredits
		bd.Services.PackagePlanID = plan.ID
		inv, err := s.issue(ctx, b, invoice.Invoice{
			Type:        invoice.TypePackagePurchase,
			CustomerID:  req.CustomerID,
			ProducerID:  req.ProducerID,
			PurchaseRef: req.PurchaseRef,
		}, bd, rates)
		if err != nil {
			return err
		}
		if _, err := b.ledger.Append(ctx, ledger.AppendRequest{
			Type:           ledger.EntryTypePackagePurchase,
			Amount:         inv.Gross,
			PayerID:        req.CustomerID,
			PayeeID:        ledger.PartyPlatform,
			InvoiceID:      inv.ID,
			Status:         ledger.EntryStatusPending,
			IdempotencyKey: "invoice:" + inv.ID + ":charge",
			Memo:           req.PurchaseRef,
		}); err != nil {
			return err
		}

		gb := invoice.GroupBreakdown(group, rates, period)
		gb.Services.Package = price
		gb.Trigger = triggerPackage
		m, err := s.mirror(ctx, b, &inv, req.ProducerID, gb, rates)
		if err != nil {
			return err
		}

		sub, found, err := b.subs.Load(ctx, req.CustomerID)
		if err != nil {
			return err
		}
		if !found {
			sub = subscription.Subscription{
				CustomerID:       req.CustomerID,
				CostThisMonth:    decimal.Zero,
				LastMonthlyReset: now,
			}
		}
		if err := subscription.GrantPackage(&sub, plan); err != nil {
			return err
		}
		if err := b.subs.Save(ctx, sub); err != nil {
			return err
		}

		if err := b.audit.Log(ctx, actor, audit.EventTypePackagePurchased, inv.ID,
			fmt.Sprintf("package %s for %s", plan.Name, price.StringFixed(2)),
			req.PurchaseRef); err != nil {
			return err
		}
		out = PackageResult{Invoice: inv, Mirror: m, Created: true}
		return nil
	})
	if err != nil {
		return PackageResult{}, err
	}

	if out.Created {
		logger.From(ctx).Info("package purchased",
			"customer_id", req.CustomerID,
			"invoice_number", out.Invoice.Number,
			"credits_plan", req.PlanID,
		)
		s.notify(ctx, created(out.Invoice, out.Mirror))
	}
	return out, nil
}
