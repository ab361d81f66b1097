package subscription

import (
	"context"
	"errors"
	"strings"
	"time"

	"settlement-platform/internal/fulfillment"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("subscription: not found")
	ErrPlanNotFound    = errors.New("subscription: plan not found")
	ErrInvalidArgument = errors.New("subscription: invalid argument")
	ErrCreditsConsumed = errors.New("subscription: package credits already used")
)

// Repository abstracts subscription and plan persistence.
// A missing subscription is an expected state and is reported through the bool.
type Repository interface {
	GetSubscription(ctx context.Context, customerID string) (Subscription, bool, error)
	SaveSubscription(ctx context.Context, s Subscription) error
	ListSubscriptions(ctx context.Context) ([]Subscription, error)

	GetPlan(ctx context.Context, id string) (Plan, bool, error)
	SavePlan(ctx context.Context, p Plan) error
}

// Ledger tracks prepaid package credits and monthly usage per customer.
type Ledger struct {
	repo  Repository
	loc   *time.Location
	clock func() time.Time
}

// NewLedger builds a ledger whose month boundaries follow loc.
func NewLedger(repo Repository, loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{repo: repo, loc: loc, clock: time.Now}
}

func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// Load returns the customer's subscription with the lazy monthly reset applied.
// The reset is not persisted here; callers save the subscription with the rest
// of their changes.
func (l *Ledger) Load(ctx context.Context, customerID string) (Subscription, bool, error) {
	if strings.TrimSpace(customerID) == "" {
		return Subscription{}, false, ErrInvalidArgument
	}
	s, ok, err := l.repo.GetSubscription(ctx, customerID)
	if err != nil || !ok {
		return Subscription{}, ok, err
	}
	MonthlyReset(&s, l.clock(), l.loc)
	return s, true, nil
}

func (l *Ledger) Save(ctx context.Context, s Subscription) error {
	s.UpdatedAt = l.clock().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.UpdatedAt
	}
	return l.repo.SaveSubscription(ctx, s)
}

func (l *Ledger) Plan(ctx context.Context, planID string) (Plan, error) {
	p, ok, err := l.repo.GetPlan(ctx, planID)
	if err != nil {
		return Plan{}, err
	}
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return p, nil
}

// RecordUsage decides how a unit is charged and updates the counters on sub.
//
// A physical unit consumes one package credit when the subscription is an
// active package with credits left; the unit is then zero-charged and its
// snapshot cleared. Otherwise the unit's upstream snapshot (or the catalog
// price) becomes the charge and is written back as the snapshot. Running out
// of credits never blocks, it falls through to pay-per-use.
//
// Units whose usage was already recorded are returned as-is from their snapshot.
func (l *Ledger) RecordUsage(sub *Subscription, unit *fulfillment.Unit, prices Prices) ChargeDecision {
	now := l.clock().UTC()
	MonthlyReset(sub, now, l.loc)
	return recordUsage(sub, unit, prices, now)
}

func recordUsage(sub *Subscription, unit *fulfillment.Unit, prices Prices, now time.Time) ChargeDecision {
	if unit.UsageRecorded() {
		return decisionFromSnapshot(*unit)
	}

	var d ChargeDecision
	if unit.IsPhysical {
		if sub.canUseCredit() {
			sub.PackageCreditsUsed++
			unit.PriceSnapshot = nil
			unit.CoveredByPackage = true
			d.UsedPackageCredit = true
		} else {
			charge := prices.Physical
			if unit.PriceSnapshot != nil {
				charge = *unit.PriceSnapshot
			}
			charge = charge.Round(2)
			unit.PriceSnapshot = &charge
			d.PhysicalCharge = charge
		}
		sub.UnitsThisMonth++
	} else {
		charge := prices.Digital
		if unit.PriceSnapshot != nil {
			charge = *unit.PriceSnapshot
		}
		charge = charge.Round(2)
		unit.PriceSnapshot = &charge
		d.DigitalCharge = charge
		sub.DigitalThisMonth++
	}

	sub.CostThisMonth = sub.CostThisMonth.Add(d.Total())
	unit.UsageRecordedAt = &now
	return d
}

func decisionFromSnapshot(u fulfillment.Unit) ChargeDecision {
	if u.PriceSnapshot == nil {
		return ChargeDecision{UsedPackageCredit: u.CoveredByPackage, PhysicalCharge: decimal.Zero, DigitalCharge: decimal.Zero}
	}
	if u.IsPhysical {
		return ChargeDecision{PhysicalCharge: *u.PriceSnapshot, DigitalCharge: decimal.Zero}
	}
	return ChargeDecision{PhysicalCharge: decimal.Zero, DigitalCharge: *u.PriceSnapshot}
}

// MonthlyReset zeroes the monthly counters and the fee-paid flag when the
// stored reset month differs from now's month in loc. Package credits are
// never touched. It reports whether a reset happened.
func MonthlyReset(sub *Subscription, now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	cur := now.In(loc)
	if !sub.LastMonthlyReset.IsZero() {
		last := sub.LastMonthlyReset.In(loc)
		if last.Year() == cur.Year() && last.Month() == cur.Month() {
			return false
		}
	}
	sub.UnitsThisMonth = 0
	sub.DigitalThisMonth = 0
	sub.CostThisMonth = decimal.Zero
	sub.MonthlyFeePaid = false
	sub.LastMonthlyReset = now.UTC()
	return true
}

// GrantPackage switches sub to the package plan and adds its credits.
func GrantPackage(sub *Subscription, plan Plan) error {
	if plan.Type != PlanTypePackage || plan.PackageCredits <= 0 {
		return ErrInvalidArgument
	}
	sub.PlanID = plan.ID
	sub.PlanType = PlanTypePackage
	sub.PackageCreditsGranted += plan.PackageCredits
	sub.Status = StatusActive
	return nil
}

// RevokePackage takes back the credits a cancelled package purchase granted.
// Credits are fungible across purchases, so the revocation only succeeds while
// at least that many credits are still unused.
func RevokePackage(sub *Subscription, credits int) error {
	if credits <= 0 {
		return ErrInvalidArgument
	}
	if sub.RemainingCredits() < credits {
		return ErrCreditsConsumed
	}
	sub.PackageCreditsGranted -= credits
	return nil
}

// RecalculateUsage resets used credits to the physical units actually produced
// since purchase, capped at the granted amount.
func RecalculateUsage(sub *Subscription, physicalSincePurchase int) {
	if physicalSincePurchase < 0 {
		physicalSincePurchase = 0
	}
	if physicalSincePurchase > sub.PackageCreditsGranted {
		physicalSincePurchase = sub.PackageCreditsGranted
	}
	sub.PackageCreditsUsed = physicalSincePurchase
}

// PayPerUse returns the transient subscription used for customers without one.
// It is never persisted.
func PayPerUse(customerID string, now time.Time) Subscription {
	return Subscription{
		CustomerID:       customerID,
		PlanType:         PlanTypeStandard,
		Status:           StatusActive,
		CostThisMonth:    decimal.Zero,
		LastMonthlyReset: now.UTC(),
	}
}
