package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCatalog_GetActiveWithoutConfiguration(t *testing.T) {
	c := NewCatalog(NewMemoryRepo())
	if _, err := c.GetActive(context.Background()); !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
}

func TestCatalog_ActivateKeepsSingleActive(t *testing.T) {
	repo := NewMemoryRepo()
	c := NewCatalog(repo)
	now := time.Unix(1700000000, 0).UTC()
	c.clock = func() time.Time { return now }
	ctx := context.Background()

	a, err := c.Create(ctx, Default(now))
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	bcfg := Default(now)
	bcfg.Name = "Summer"
	bcfg.PhysicalUnitPrice = decimal.NewFromInt(500)
	b, err := c.Create(ctx, bcfg)
	if err != nil {
		t.Fatalf("create b: %v", err)
	}

	if _, err := c.Activate(ctx, a.ID); err != nil {
		t.Fatalf("activate a: %v", err)
	}
	if _, err := c.Activate(ctx, b.ID); err != nil {
		t.Fatalf("activate b: %v", err)
	}

	all, _ := c.List(ctx)
	active := 0
	for _, cfg := range all {
		if cfg.Active {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("expected exactly one active configuration, got %d", active)
	}
	got, err := c.GetActive(ctx)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if got.ID != b.ID {
		t.Fatalf("expected %s active, got %s", b.ID, got.ID)
	}
}

func TestCatalog_ActivateRejectsInvalidPricing(t *testing.T) {
	repo := NewMemoryRepo()
	c := NewCatalog(repo)
	ctx := context.Background()

	bad := Default(time.Now())
	bad.ID = "bad"
	bad.TaxRate = decimal.NewFromInt(-100)
	// Bypass Create validation to simulate a row written by another tool.
	_ = repo.InsertConfiguration(ctx, bad)

	if _, err := c.Activate(ctx, "bad"); !errors.Is(err, ErrInvalidPricing) {
		t.Fatalf("expected ErrInvalidPricing, got %v", err)
	}
	if _, err := c.GetActive(ctx); !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("expected no active configuration, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := Default(time.Now())
	if err := Validate(base); err != nil {
		t.Fatalf("expected default pricing to validate, got %v", err)
	}

	cases := map[string]func(c *Configuration){
		"negative physical": func(c *Configuration) { c.PhysicalUnitPrice = decimal.NewFromInt(-1) },
		"negative fee":      func(c *Configuration) { c.MonthlyFee = decimal.NewFromInt(-1) },
		"commission > 100":  func(c *Configuration) { c.CommissionRate = decimal.NewFromInt(101) },
		"negative card":     func(c *Configuration) { c.CardFeeRate = decimal.NewFromInt(-3) },
		"tax at -100":       func(c *Configuration) { c.TaxRate = decimal.NewFromInt(-100) },
		"missing name":      func(c *Configuration) { c.Name = "" },
	}
	for name, mutate := range cases {
		c := base
		mutate(&c)
		if err := Validate(c); !errors.Is(err, ErrInvalidPricing) {
			t.Fatalf("%s: expected ErrInvalidPricing, got %v", name, err)
		}
	}
}

func TestConfiguration_CommissionAndCardFee(t *testing.T) {
	c := Default(time.Now())
	gross := decimal.NewFromInt(450)

	if got := c.Commission(gross); !got.Equal(decimal.RequireFromString("29.25")) {
		t.Fatalf("expected commission 29.25, got %s", got)
	}
	if got := c.CardFee(gross, MethodCard); !got.Equal(decimal.RequireFromString("13.50")) {
		t.Fatalf("expected card fee 13.50, got %s", got)
	}
	if got := c.CardFee(gross, MethodBankTransfer); !got.IsZero() {
		t.Fatalf("expected no card fee for bank transfer, got %s", got)
	}
	// half-up at the cent boundary: 0.05 * 6.5% = 0.00325 -> 0.00; 0.10 * 6.5% = 0.0065 -> 0.01
	if got := c.Commission(decimal.RequireFromString("0.10")); !got.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("expected half-up rounding to 0.01, got %s", got)
	}
}

func TestConfiguration_Summary(t *testing.T) {
	s := Default(time.Now()).Summary()
	if !s.Physical.WithoutTax.Equal(decimal.NewFromInt(375)) {
		t.Fatalf("expected physical without tax 375, got %s", s.Physical.WithoutTax)
	}
	if !s.Physical.NetToProducer.Equal(decimal.RequireFromString("420.75")) {
		t.Fatalf("expected physical net 420.75, got %s", s.Physical.NetToProducer)
	}
	if !s.Digital.Tax.Add(s.Digital.WithoutTax).Equal(s.Digital.WithTax) {
		t.Fatalf("expected digital tax split to sum back to gross")
	}
}
