package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"settlement-platform/internal/pricing"
	"settlement-platform/internal/subscription"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// money accepts quoted or bare YAML numbers without a float round trip.
type money struct {
	decimal.Decimal
	set bool
}

func (m *money) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", n.Line)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(n.Value))
	if err != nil {
		return fmt.Errorf("line %d: %q is not a number", n.Line, n.Value)
	}
	m.Decimal, m.set = d, true
	return nil
}

type planFile struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Credits    int    `yaml:"credits"`
	Price      money  `yaml:"price"`
	MonthlyFee money  `yaml:"monthly_fee"`
}

// pricingFile is the document read by `settlectl pricing import`.
type pricingFile struct {
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	EffectiveDate string `yaml:"effective_date"`

	PhysicalUnitPrice money `yaml:"physical_unit_price"`
	DigitalUnitPrice  money `yaml:"digital_unit_price"`
	MonthlyFee        money `yaml:"monthly_fee"`
	CommissionRate    money `yaml:"commission_rate"`
	CardFeeRate       money `yaml:"card_fee_rate"`
	TaxRate           money `yaml:"tax_rate"`

	Activate bool       `yaml:"activate"`
	Plans    []planFile `yaml:"plans"`
}

func loadPricingFile(path string) (pricingFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pricingFile{}, err
	}
	var f pricingFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return pricingFile{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	required := []struct {
		name string
		m    money
	}{
		{"physical_unit_price", f.PhysicalUnitPrice},
		{"digital_unit_price", f.DigitalUnitPrice},
		{"commission_rate", f.CommissionRate},
		{"card_fee_rate", f.CardFeeRate},
		{"tax_rate", f.TaxRate},
	}
	for _, r := range required {
		if !r.m.set {
			return pricingFile{}, fmt.Errorf("%s: %s is required", path, r.name)
		}
	}
	return f, nil
}

func (f pricingFile) configuration() (pricing.Configuration, error) {
	c := pricing.Configuration{
		Name:              f.Name,
		Description:       f.Description,
		PhysicalUnitPrice: f.PhysicalUnitPrice.Decimal,
		DigitalUnitPrice:  f.DigitalUnitPrice.Decimal,
		MonthlyFee:        f.MonthlyFee.Decimal,
		CommissionRate:    f.CommissionRate.Decimal,
		CardFeeRate:       f.CardFeeRate.Decimal,
		TaxRate:           f.TaxRate.Decimal,
	}
	if f.EffectiveDate != "" {
		t, err := parseDate(f.EffectiveDate)
		if err != nil {
			return pricing.Configuration{}, fmt.Errorf("effective_date: %w", err)
		}
		c.EffectiveDate = t
	}
	return c, nil
}

func (p planFile) plan() subscription.Plan {
	out := subscription.Plan{
		ID:             p.ID,
		Name:           p.Name,
		Type:           subscription.PlanType(p.Type),
		PackageCredits: p.Credits,
		PackagePrice:   p.Price.Decimal,
	}
	if p.MonthlyFee.set {
		fee := p.MonthlyFee.Decimal
		out.MonthlyFee = &fee
	}
	return out
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
