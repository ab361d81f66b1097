package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Configuration is one versioned set of platform prices and rates.
// All prices are gross (tax-inclusive). Rates are percentages (6.5 means 6.5%).
//
// Invariant: at most one configuration is active at any instant. Inactive
// configurations are kept for audit and are never resolved by default.
type Configuration struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description,omitempty" db:"description"`

	EffectiveDate time.Time `json:"effective_date" db:"effective_date"`

	PhysicalUnitPrice decimal.Decimal `json:"physical_unit_price" db:"physical_unit_price"`
	DigitalUnitPrice  decimal.Decimal `json:"digital_unit_price" db:"digital_unit_price"`
	MonthlyFee        decimal.Decimal `json:"monthly_fee" db:"monthly_fee"`

	CommissionRate decimal.Decimal `json:"commission_rate" db:"commission_rate"`
	CardFeeRate    decimal.Decimal `json:"card_fee_rate" db:"card_fee_rate"`
	TaxRate        decimal.Decimal `json:"tax_rate" db:"tax_rate"`

	Active bool `json:"active" db:"active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PaymentMethod selects whether card processing fees apply.
type PaymentMethod string

const (
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCash         PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodBankTransfer, MethodCash:
		return true
	default:
		return false
	}
}

var hundred = decimal.NewFromInt(100)

// Commission returns the platform commission on a gross amount, rounded half-up to cents.
func (c Configuration) Commission(gross decimal.Decimal) decimal.Decimal {
	return gross.Mul(c.CommissionRate).Div(hundred).Round(2)
}

// CardFee returns the card processing fee on amount. Non-card methods carry no fee.
func (c Configuration) CardFee(amount decimal.Decimal, method PaymentMethod) decimal.Decimal {
	if method != MethodCard {
		return decimal.Zero
	}
	return amount.Mul(c.CardFeeRate).Div(hundred).Round(2)
}

// WithoutTax strips the flat tax from a gross amount.
func (c Configuration) WithoutTax(gross decimal.Decimal) decimal.Decimal {
	return gross.Div(decimal.NewFromInt(1).Add(c.TaxRate.Div(hundred))).Round(2)
}

// UnitSummary is the per-unit view of a price shown to operators.
type UnitSummary struct {
	WithTax           decimal.Decimal `json:"with_tax"`
	WithoutTax        decimal.Decimal `json:"without_tax"`
	Tax               decimal.Decimal `json:"tax"`
	Commission        decimal.Decimal `json:"commission"`
	NetToProducer     decimal.Decimal `json:"net_to_producer"`
	CardFeeIfCardPaid decimal.Decimal `json:"card_fee_if_card_paid"`
}

type Summary struct {
	ConfigurationID string          `json:"configuration_id"`
	Name            string          `json:"name"`
	Physical        UnitSummary     `json:"physical"`
	Digital         UnitSummary     `json:"digital"`
	MonthlyFee      decimal.Decimal `json:"monthly_fee"`
	CommissionRate  decimal.Decimal `json:"commission_rate"`
	CardFeeRate     decimal.Decimal `json:"card_fee_rate"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
}

func (c Configuration) unitSummary(price decimal.Decimal) UnitSummary {
	without := c.WithoutTax(price)
	commission := c.Commission(price)
	return UnitSummary{
		WithTax:           price,
		WithoutTax:        without,
		Tax:               price.Sub(without),
		Commission:        commission,
		NetToProducer:     price.Sub(commission),
		CardFeeIfCardPaid: c.CardFee(price, MethodCard),
	}
}

// Summary breaks the configured unit prices down into tax, commission and payout.
func (c Configuration) Summary() Summary {
	return Summary{
		ConfigurationID: c.ID,
		Name:            c.Name,
		Physical:        c.unitSummary(c.PhysicalUnitPrice),
		Digital:         c.unitSummary(c.DigitalUnitPrice),
		MonthlyFee:      c.MonthlyFee,
		CommissionRate:  c.CommissionRate,
		CardFeeRate:     c.CardFeeRate,
		TaxRate:         c.TaxRate,
	}
}

// Default returns the stock configuration used to bootstrap a new installation.
func Default(now time.Time) Configuration {
	return Configuration{
		Name:              "Default pricing",
		Description:       "Physical 450, digital 50, monthly fee 100; commission 6.5%, card 3%, tax 20%",
		EffectiveDate:     now,
		PhysicalUnitPrice: decimal.NewFromInt(450),
		DigitalUnitPrice:  decimal.NewFromInt(50),
		MonthlyFee:        decimal.NewFromInt(100),
		CommissionRate:    decimal.RequireFromString("6.5"),
		CardFeeRate:       decimal.NewFromInt(3),
		TaxRate:           decimal.NewFromInt(20),
	}
}
