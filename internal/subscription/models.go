package subscription

import (
	"time"

	"github.com/shopspring/decimal"
)

type PlanType string

const (
	PlanTypePackage  PlanType = "package"
	PlanTypeStandard PlanType = "standard"
)

// Plan describes what a customer bought. Package plans grant physical-unit
// credits on purchase.
type Plan struct {
	ID   string   `json:"id" db:"id"`
	Name string   `json:"name" db:"name"`
	Type PlanType `json:"type" db:"type"`

	PackageCredits int             `json:"package_credits" db:"package_credits"`
	PackagePrice   decimal.Decimal `json:"package_price" db:"package_price"`

	// MonthlyFee overrides the catalog monthly fee when set.
	MonthlyFee *decimal.Decimal `json:"monthly_fee,omitempty" db:"monthly_fee"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
	StatusPending   Status = "pending"
)

// Subscription is the per-customer usage ledger.
//
// Credit invariant: PackageCreditsUsed <= PackageCreditsGranted. Package credits
// never reset on their own; only the monthly counters roll over.
type Subscription struct {
	CustomerID string   `json:"customer_id" db:"customer_id"`
	PlanID     string   `json:"plan_id,omitempty" db:"plan_id"`
	PlanType   PlanType `json:"plan_type" db:"plan_type"`
	Status     Status   `json:"status" db:"status"`

	UnitsThisMonth   int             `json:"units_this_month" db:"units_this_month"`
	DigitalThisMonth int             `json:"digital_this_month" db:"digital_this_month"`
	CostThisMonth    decimal.Decimal `json:"cost_this_month" db:"cost_this_month"`
	MonthlyFeePaid   bool            `json:"monthly_fee_paid" db:"monthly_fee_paid"`

	PackageCreditsGranted int `json:"package_credits_granted" db:"package_credits_granted"`
	PackageCreditsUsed    int `json:"package_credits_used" db:"package_credits_used"`

	LastMonthlyReset time.Time `json:"last_monthly_reset" db:"last_monthly_reset"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RemainingCredits is the number of physical units still covered by a package.
func (s Subscription) RemainingCredits() int {
	r := s.PackageCreditsGranted - s.PackageCreditsUsed
	if r < 0 {
		return 0
	}
	return r
}

func (s Subscription) canUseCredit() bool {
	return s.PlanType == PlanTypePackage && s.Status == StatusActive && s.PackageCreditsUsed < s.PackageCreditsGranted
}

// Prices are the catalog prices a usage decision falls back to when a unit
// carries no upstream snapshot.
type Prices struct {
	Physical decimal.Decimal
	Digital  decimal.Decimal
}

// ChargeDecision is the outcome of recording usage for one unit.
type ChargeDecision struct {
	PhysicalCharge    decimal.Decimal `json:"physical_charge"`
	DigitalCharge     decimal.Decimal `json:"digital_charge"`
	UsedPackageCredit bool            `json:"used_package_credit"`
}

func (d ChargeDecision) Total() decimal.Decimal {
	return d.PhysicalCharge.Add(d.DigitalCharge)
}
