package invoice

import (
	"encoding/json"
	"fmt"
	"time"

	"settlement-platform/internal/settlement"

	"github.com/shopspring/decimal"
)

// BreakdownVersion is bumped on any incompatible change to Breakdown.
const BreakdownVersion = 1

// Breakdown is the immutable snapshot stored with every invoice. It is a
// durable contract: readers must accept every version they have ever written.
type Breakdown struct {
	V        int                 `json:"v"`
	Period   Period              `json:"period"`
	Services Services            `json:"services"`
	Summary  Summary             `json:"summary"`
	Rates    BreakdownRates      `json:"rates"`
	NetBasis settlement.NetBasis `json:"net_basis"`

	AutoCreated   bool   `json:"auto_created"`
	TriggerUnitID string `json:"trigger_unit_id,omitempty"`
	Trigger       string `json:"trigger,omitempty"`
}

type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type ServiceLine struct {
	Count     int             `json:"count"`
	Amount    decimal.Decimal `json:"amount"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	UnitIDs   []string        `json:"unit_ids,omitempty"`
}

type Services struct {
	Physical   ServiceLine     `json:"physical"`
	Digital    ServiceLine     `json:"digital"`
	MonthlyFee decimal.Decimal `json:"monthly_fee"`
	Package    decimal.Decimal `json:"package"`

	// Credits granted by a package purchase and the plan they came from.
	PackageCredits int    `json:"package_credits,omitempty"`
	PackagePlanID  string `json:"package_plan_id,omitempty"`
}

type Summary struct {
	Gross            decimal.Decimal `json:"gross"`
	Tax              decimal.Decimal `json:"tax"`
	GrossWithoutTax  decimal.Decimal `json:"gross_without_tax"`
	PlatformFee      decimal.Decimal `json:"platform_fee"`
	CardFee          decimal.Decimal `json:"card_fee"`
	ProducerReceives decimal.Decimal `json:"producer_receives"`
}

type BreakdownRates struct {
	Tax        decimal.Decimal `json:"tax"`
	Commission decimal.Decimal `json:"commission"`
	CardFee    decimal.Decimal `json:"card_fee"`
}

// Encode serializes the breakdown, stamping the current version.
func (b Breakdown) Encode() (json.RawMessage, error) {
	b.V = BreakdownVersion
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode breakdown: %w", err)
	}
	return raw, nil
}

// DecodeBreakdown parses a stored snapshot.
func DecodeBreakdown(raw json.RawMessage) (Breakdown, error) {
	var b Breakdown
	if err := json.Unmarshal(raw, &b); err != nil {
		return Breakdown{}, fmt.Errorf("decode breakdown: %w", err)
	}
	if b.V == 0 || b.V > BreakdownVersion {
		return Breakdown{}, fmt.Errorf("decode breakdown: unsupported version %d", b.V)
	}
	return b, nil
}

func serviceLine(count int, amount decimal.Decimal, ids []string) ServiceLine {
	l := ServiceLine{Count: count, Amount: amount, UnitIDs: ids}
	if count > 0 {
		l.UnitPrice = amount.Div(decimal.NewFromInt(int64(count))).Round(2)
	}
	return l
}

// CustomerBreakdown snapshots the customer side of a settlement.
func CustomerBreakdown(res settlement.Result, period Period) Breakdown {
	t := res.Totals
	var physIDs, digIDs []string
	for _, g := range res.Groups {
		physIDs = append(physIDs, g.PhysicalUnitIDs...)
		digIDs = append(digIDs, g.DigitalUnitIDs...)
	}
	return Breakdown{
		V:      BreakdownVersion,
		Period: period,
		Services: Services{
			Physical:   serviceLine(t.PhysicalCount, t.PhysicalAmount, physIDs),
			Digital:    serviceLine(t.DigitalCount, t.DigitalAmount, digIDs),
			MonthlyFee: t.MonthlyFee,
			Package:    t.PackageAmount,
		},
		Summary: Summary{
			Gross:            t.Gross,
			Tax:              t.Tax,
			GrossWithoutTax:  t.WithoutTax,
			PlatformFee:      t.PlatformFee,
			CardFee:          t.CardFee,
			ProducerReceives: t.NetToProducer,
		},
		Rates:    ratesOf(res.Rates),
		NetBasis: res.Rates.NetBasis,
	}
}

// GroupBreakdown snapshots one producer group of a settlement.
func GroupBreakdown(g settlement.Group, rates settlement.Rates, period Period) Breakdown {
	return Breakdown{
		V:      BreakdownVersion,
		Period: period,
		Services: Services{
			Physical: serviceLine(g.PhysicalCount, g.PhysicalAmount, g.PhysicalUnitIDs),
			Digital:  serviceLine(g.DigitalCount, g.DigitalAmount, g.DigitalUnitIDs),
		},
		Summary: Summary{
			Gross:            g.Gross,
			Tax:              g.Tax,
			GrossWithoutTax:  g.WithoutTax,
			PlatformFee:      g.PlatformFee,
			CardFee:          g.CardFee,
			ProducerReceives: g.NetToProducer,
		},
		Rates:    ratesOf(rates),
		NetBasis: rates.NetBasis,
	}
}

func ratesOf(r settlement.Rates) BreakdownRates {
	return BreakdownRates{Tax: r.TaxRate, Commission: r.CommissionRate, CardFee: r.CardFeeRate}
}

// ApplyTotals copies breakdown figures onto the invoice columns.
func (inv *Invoice) ApplyTotals(b Breakdown, rates settlement.Rates) {
	inv.PeriodStart = b.Period.Start
	inv.PeriodEnd = b.Period.End
	inv.PhysicalCount = b.Services.Physical.Count
	inv.PhysicalAmount = b.Services.Physical.Amount
	inv.DigitalCount = b.Services.Digital.Count
	inv.DigitalAmount = b.Services.Digital.Amount
	inv.MonthlyFee = b.Services.MonthlyFee
	inv.PackageAmount = b.Services.Package
	inv.Gross = b.Summary.Gross
	inv.TaxAmount = b.Summary.Tax
	inv.GrossWithoutTax = b.Summary.GrossWithoutTax
	inv.PlatformFee = b.Summary.PlatformFee
	inv.CardFee = b.Summary.CardFee
	inv.NetPayout = b.Summary.ProducerReceives
	inv.TaxRate = rates.TaxRate
	inv.CommissionRate = rates.CommissionRate
	inv.CardFeeRate = rates.CardFeeRate
	inv.PaymentMethod = rates.Method
}
