// Package settlement turns tax-inclusive gross amounts into tax, commission,
// card fee and producer payout figures. It is pure: no I/O, no clock.
package settlement

import (
	"errors"
	"sort"

	"settlement-platform/internal/pricing"

	"github.com/shopspring/decimal"
)

// NetBasis selects the base the platform commission and producer payout are
// computed on.
type NetBasis string

const (
	// NetBasisGross computes fees on the tax-inclusive amount.
	NetBasisGross NetBasis = "gross"
	// NetBasisWithoutTax computes fees on the amount with tax stripped.
	NetBasisWithoutTax NetBasis = "without_tax"
)

func (b NetBasis) Valid() bool {
	return b == NetBasisGross || b == NetBasisWithoutTax
}

var ErrInvalidRates = errors.New("settlement: invalid rates")

var hundred = decimal.NewFromInt(100)

// Rates are the percentages frozen into a settlement.
type Rates struct {
	TaxRate        decimal.Decimal       `json:"tax_rate"`
	CommissionRate decimal.Decimal       `json:"commission_rate"`
	CardFeeRate    decimal.Decimal       `json:"card_fee_rate"`
	Method         pricing.PaymentMethod `json:"payment_method"`
	NetBasis       NetBasis              `json:"net_basis"`
}

// RatesFrom copies the rates of a pricing configuration.
func RatesFrom(c pricing.Configuration, method pricing.PaymentMethod, basis NetBasis) Rates {
	if basis == "" {
		basis = NetBasisGross
	}
	return Rates{
		TaxRate:        c.TaxRate,
		CommissionRate: c.CommissionRate,
		CardFeeRate:    c.CardFeeRate,
		Method:         method,
		NetBasis:       basis,
	}
}

func (r Rates) validate() error {
	if r.TaxRate.IsNegative() || r.CommissionRate.IsNegative() || r.CardFeeRate.IsNegative() {
		return ErrInvalidRates
	}
	if !r.NetBasis.Valid() {
		return ErrInvalidRates
	}
	return nil
}

func round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// SplitTax decomposes a gross amount into the amount without tax and the tax.
// The two parts always sum back to gross exactly.
func SplitTax(gross, taxRate decimal.Decimal) (withoutTax, tax decimal.Decimal) {
	multiplier := decimal.NewFromInt(1).Add(taxRate.Div(hundred))
	withoutTax = round2(gross.Div(multiplier))
	return withoutTax, gross.Sub(withoutTax)
}

// Fees is the fee and payout split of a commissionable base.
type Fees struct {
	Base          decimal.Decimal `json:"base"`
	PlatformFee   decimal.Decimal `json:"platform_fee"`
	CardFee       decimal.Decimal `json:"card_fee"`
	NetToProducer decimal.Decimal `json:"net_to_producer"`
}

// ComputeFees applies the commission and card rates to a tax-inclusive base.
// The card fee is reported for the platform but not deducted from the payout.
func ComputeFees(base decimal.Decimal, r Rates) Fees {
	netBase := base
	if r.NetBasis == NetBasisWithoutTax {
		netBase, _ = SplitTax(base, r.TaxRate)
	}
	fee := round2(netBase.Mul(r.CommissionRate).Div(hundred))
	card := decimal.Zero
	if r.Method == pricing.MethodCard {
		card = round2(base.Mul(r.CardFeeRate).Div(hundred))
	}
	return Fees{
		Base:          netBase,
		PlatformFee:   fee,
		CardFee:       card,
		NetToProducer: netBase.Sub(fee),
	}
}

type Kind string

const (
	KindPhysical Kind = "physical"
	KindDigital  Kind = "digital"
)

// Line is one billed unit.
type Line struct {
	UnitID     string
	ProducerID string
	Kind       Kind
	Amount     decimal.Decimal
}

// Group is the settlement of the lines that belong to one producer. Digital
// lines and physical lines without a producer settle in the platform group,
// whose ProducerID is empty.
type Group struct {
	ProducerID string `json:"producer_id,omitempty"`

	PhysicalCount  int             `json:"physical_count"`
	PhysicalAmount decimal.Decimal `json:"physical_amount"`
	DigitalCount   int             `json:"digital_count"`
	DigitalAmount  decimal.Decimal `json:"digital_amount"`

	PhysicalUnitIDs []string `json:"physical_unit_ids,omitempty"`
	DigitalUnitIDs  []string `json:"digital_unit_ids,omitempty"`

	Gross      decimal.Decimal `json:"gross"`
	Tax        decimal.Decimal `json:"tax"`
	WithoutTax decimal.Decimal `json:"without_tax"`
	Fees
}

// HasPhysical reports whether the group should be mirrored to its producer.
func (g Group) HasPhysical() bool { return g.ProducerID != "" && g.PhysicalCount > 0 }

// Totals is the customer-side view of a settlement.
type Totals struct {
	PhysicalCount  int             `json:"physical_count"`
	PhysicalAmount decimal.Decimal `json:"physical_amount"`
	DigitalCount   int             `json:"digital_count"`
	DigitalAmount  decimal.Decimal `json:"digital_amount"`
	MonthlyFee     decimal.Decimal `json:"monthly_fee"`
	PackageAmount  decimal.Decimal `json:"package_amount"`

	Gross      decimal.Decimal `json:"gross"`
	Tax        decimal.Decimal `json:"tax"`
	WithoutTax decimal.Decimal `json:"without_tax"`

	PlatformFee   decimal.Decimal `json:"platform_fee"`
	CardFee       decimal.Decimal `json:"card_fee"`
	NetToProducer decimal.Decimal `json:"net_to_producer"`
}

// Result is a complete batch settlement.
type Result struct {
	Rates  Rates   `json:"rates"`
	Groups []Group `json:"groups"`
	Totals Totals  `json:"totals"`
}

// Input is a batch to settle. MonthlyFee and PackageAmount are part of the
// gross but never commissionable.
type Input struct {
	Lines         []Line
	MonthlyFee    decimal.Decimal
	PackageAmount decimal.Decimal
	Rates         Rates
}

// Calculate settles a batch. Lines are grouped by producer and fees are
// computed per group; the customer-side fees are the sum of the group fees so
// that mirrored producer invoices reconcile to the cent.
func Calculate(in Input) (Result, error) {
	if err := in.Rates.validate(); err != nil {
		return Result{}, err
	}
	if in.MonthlyFee.IsNegative() || in.PackageAmount.IsNegative() {
		return Result{}, ErrInvalidRates
	}

	byProducer := map[string]*Group{}
	order := []string{}
	for _, l := range in.Lines {
		if l.Amount.IsNegative() {
			return Result{}, ErrInvalidRates
		}
		key := ""
		if l.Kind == KindPhysical {
			key = l.ProducerID
		}
		g, ok := byProducer[key]
		if !ok {
			g = &Group{ProducerID: key}
			byProducer[key] = g
			order = append(order, key)
		}
		switch l.Kind {
		case KindPhysical:
			g.PhysicalCount++
			g.PhysicalAmount = g.PhysicalAmount.Add(l.Amount)
			g.PhysicalUnitIDs = append(g.PhysicalUnitIDs, l.UnitID)
		case KindDigital:
			g.DigitalCount++
			g.DigitalAmount = g.DigitalAmount.Add(l.Amount)
			g.DigitalUnitIDs = append(g.DigitalUnitIDs, l.UnitID)
		default:
			return Result{}, ErrInvalidRates
		}
	}
	sort.Strings(order)

	out := Result{Rates: in.Rates}
	t := &out.Totals
	for _, key := range order {
		g := byProducer[key]
		g.Gross = g.PhysicalAmount.Add(g.DigitalAmount)
		g.WithoutTax, g.Tax = SplitTax(g.Gross, in.Rates.TaxRate)
		g.Fees = ComputeFees(g.Gross, in.Rates)
		out.Groups = append(out.Groups, *g)

		t.PhysicalCount += g.PhysicalCount
		t.PhysicalAmount = t.PhysicalAmount.Add(g.PhysicalAmount)
		t.DigitalCount += g.DigitalCount
		t.DigitalAmount = t.DigitalAmount.Add(g.DigitalAmount)
		t.PlatformFee = t.PlatformFee.Add(g.PlatformFee)
		t.CardFee = t.CardFee.Add(g.CardFee)
		t.NetToProducer = t.NetToProducer.Add(g.NetToProducer)
	}

	t.MonthlyFee = in.MonthlyFee
	t.PackageAmount = in.PackageAmount
	t.Gross = t.PhysicalAmount.Add(t.DigitalAmount).Add(t.MonthlyFee).Add(t.PackageAmount)
	t.WithoutTax, t.Tax = SplitTax(t.Gross, in.Rates.TaxRate)
	return out, nil
}

// Package settles a package purchase: the whole gross is the package amount,
// and the producer mirror carries the same gross less commission.
func Package(producerID string, price decimal.Decimal, r Rates) (Result, Group, error) {
	if err := r.validate(); err != nil {
		return Result{}, Group{}, err
	}
	if price.IsNegative() {
		return Result{}, Group{}, ErrInvalidRates
	}
	g := Group{ProducerID: producerID, Gross: price}
	g.WithoutTax, g.Tax = SplitTax(price, r.TaxRate)
	g.Fees = ComputeFees(price, r)

	res := Result{Rates: r, Groups: []Group{g}}
	res.Totals = Totals{
		PackageAmount: price,
		Gross:         price,
		Tax:           g.Tax,
		WithoutTax:    g.WithoutTax,
		PlatformFee:   g.PlatformFee,
		CardFee:       g.CardFee,
		NetToProducer: g.NetToProducer,
	}
	return res, g, nil
}
