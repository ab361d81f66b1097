package invoice

import (
	"encoding/json"
	"time"

	"settlement-platform/internal/pricing"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeCustomer        Type = "customer"
	TypeProducer        Type = "producer"
	TypePackagePurchase Type = "package_purchase"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusIssued    Status = "issued"
	StatusSent      Status = "sent"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// Payable reports whether a payment may still be collected for the status.
func (s Status) Payable() bool {
	return s == StatusIssued || s == StatusSent || s == StatusOverdue
}

// Invoice is a customer charge, a producer payout statement, or a package
// purchase.
//
// Amount invariants:
// - Gross = PhysicalAmount + DigitalAmount + MonthlyFee + PackageAmount
// - TaxAmount = Gross - GrossWithoutTax
// - Figures of an issued invoice are read from Breakdown, never recomputed.
type Invoice struct {
	ID     string `json:"id" db:"id"`
	Number string `json:"number" db:"number"`
	Type   Type   `json:"type" db:"type"`

	CustomerID string `json:"customer_id,omitempty" db:"customer_id"`
	ProducerID string `json:"producer_id,omitempty" db:"producer_id"`

	// CounterpartID links a customer invoice and its producer mirror.
	CounterpartID string `json:"counterpart_id,omitempty" db:"counterpart_id"`
	PurchaseRef   string `json:"purchase_ref,omitempty" db:"purchase_ref"`

	PeriodStart time.Time `json:"period_start" db:"period_start"`
	PeriodEnd   time.Time `json:"period_end" db:"period_end"`

	PhysicalCount  int             `json:"physical_count" db:"physical_count"`
	PhysicalAmount decimal.Decimal `json:"physical_amount" db:"physical_amount"`
	DigitalCount   int             `json:"digital_count" db:"digital_count"`
	DigitalAmount  decimal.Decimal `json:"digital_amount" db:"digital_amount"`
	MonthlyFee     decimal.Decimal `json:"monthly_fee" db:"monthly_fee"`
	PackageAmount  decimal.Decimal `json:"package_amount" db:"package_amount"`

	Gross           decimal.Decimal `json:"gross" db:"gross"`
	TaxRate         decimal.Decimal `json:"tax_rate" db:"tax_rate"`
	TaxAmount       decimal.Decimal `json:"tax_amount" db:"tax_amount"`
	GrossWithoutTax decimal.Decimal `json:"gross_without_tax" db:"gross_without_tax"`
	CommissionRate  decimal.Decimal `json:"commission_rate" db:"commission_rate"`
	PlatformFee     decimal.Decimal `json:"platform_fee" db:"platform_fee"`
	CardFeeRate     decimal.Decimal `json:"card_fee_rate" db:"card_fee_rate"`
	CardFee         decimal.Decimal `json:"card_fee" db:"card_fee"`
	NetPayout       decimal.Decimal `json:"net_payout" db:"net_payout"`
	Currency        string          `json:"currency" db:"currency"`

	PaymentMethod pricing.PaymentMethod `json:"payment_method" db:"payment_method"`
	Status        Status                `json:"status" db:"status"`

	IssuedAt         time.Time  `json:"issued_at" db:"issued_at"`
	DueAt            time.Time  `json:"due_at" db:"due_at"`
	PaidAt           *time.Time `json:"paid_at,omitempty" db:"paid_at"`
	PaymentReference string     `json:"payment_reference,omitempty" db:"payment_reference"`

	// LastPaymentError is the most recent gateway failure reason.
	LastPaymentError string `json:"last_payment_error,omitempty" db:"last_payment_error"`
	CancelReason     string `json:"cancel_reason,omitempty" db:"cancel_reason"`

	Breakdown json.RawMessage `json:"breakdown" db:"breakdown"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Filter narrows invoice listings. Zero fields match everything.
type Filter struct {
	CustomerID string
	ProducerID string
	Types      []Type
	Statuses   []Status
	IssuedFrom time.Time
	IssuedTo   time.Time
	DueBefore  time.Time
	Limit      int
}

func (f Filter) Match(inv Invoice) bool {
	if f.CustomerID != "" && inv.CustomerID != f.CustomerID {
		return false
	}
	if f.ProducerID != "" && inv.ProducerID != f.ProducerID {
		return false
	}
	if len(f.Types) > 0 && !containsType(f.Types, inv.Type) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, inv.Status) {
		return false
	}
	if !f.IssuedFrom.IsZero() && inv.IssuedAt.Before(f.IssuedFrom) {
		return false
	}
	if !f.IssuedTo.IsZero() && !inv.IssuedAt.Before(f.IssuedTo) {
		return false
	}
	if !f.DueBefore.IsZero() && !inv.DueAt.Before(f.DueBefore) {
		return false
	}
	return true
}

func containsType(ts []Type, t Type) bool {
	for _, x := range ts {
		if x == t {
			return true
		}
	}
	return false
}

func containsStatus(ss []Status, s Status) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}
