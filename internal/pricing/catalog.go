package pricing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Catalog resolves versioned pricing configurations.
//
// Contract:
// - No zero-price fallback: a missing active configuration is an error.
// - Validation happens on create and again on activation.
// - Single-active is enforced by the repository inside one transaction.
type Catalog struct {
	repo  Repository
	clock func() time.Time
}

func NewCatalog(repo Repository) *Catalog {
	return &Catalog{repo: repo, clock: time.Now}
}

func (s *Catalog) WithClock(clock func() time.Time) *Catalog {
	s.clock = clock
	return s
}

var (
	ErrConfigurationMissing = errors.New("pricing: no active configuration")
	ErrInvalidPricing       = errors.New("pricing: invalid configuration")
	ErrNotFound             = errors.New("pricing: configuration not found")
)

// Repository abstracts pricing persistence.
type Repository interface {
	InsertConfiguration(ctx context.Context, c Configuration) error
	GetConfiguration(ctx context.Context, id string) (Configuration, bool, error)
	ActiveConfiguration(ctx context.Context) (Configuration, bool, error)
	ListConfigurations(ctx context.Context) ([]Configuration, error)

	// ActivateConfiguration deactivates every other configuration and activates id
	// in one step.
	ActivateConfiguration(ctx context.Context, id string, at time.Time) error
}

// Create stores a new inactive configuration.
func (s *Catalog) Create(ctx context.Context, c Configuration) (Configuration, error) {
	if err := Validate(c); err != nil {
		return Configuration{}, err
	}
	now := s.clock().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.EffectiveDate.IsZero() {
		c.EffectiveDate = now
	}
	c.Active = false
	c.CreatedAt = now
	c.UpdatedAt = now
	if err := s.repo.InsertConfiguration(ctx, c); err != nil {
		return Configuration{}, err
	}
	return c, nil
}

// Activate makes id the only active configuration.
func (s *Catalog) Activate(ctx context.Context, id string) (Configuration, error) {
	if strings.TrimSpace(id) == "" {
		return Configuration{}, ErrNotFound
	}
	c, ok, err := s.repo.GetConfiguration(ctx, id)
	if err != nil {
		return Configuration{}, err
	}
	if !ok {
		return Configuration{}, ErrNotFound
	}
	if err := Validate(c); err != nil {
		return Configuration{}, err
	}
	now := s.clock().UTC()
	if err := s.repo.ActivateConfiguration(ctx, id, now); err != nil {
		return Configuration{}, err
	}
	c.Active = true
	c.UpdatedAt = now
	return c, nil
}

func (s *Catalog) GetActive(ctx context.Context) (Configuration, error) {
	c, ok, err := s.repo.ActiveConfiguration(ctx)
	if err != nil {
		return Configuration{}, err
	}
	if !ok {
		return Configuration{}, ErrConfigurationMissing
	}
	return c, nil
}

func (s *Catalog) Get(ctx context.Context, id string) (Configuration, error) {
	c, ok, err := s.repo.GetConfiguration(ctx, id)
	if err != nil {
		return Configuration{}, err
	}
	if !ok {
		return Configuration{}, ErrNotFound
	}
	return c, nil
}

func (s *Catalog) List(ctx context.Context) ([]Configuration, error) {
	return s.repo.ListConfigurations(ctx)
}

// Commission resolves the active configuration and applies its commission rate.
func (s *Catalog) Commission(ctx context.Context, gross decimal.Decimal) (decimal.Decimal, error) {
	c, err := s.GetActive(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return c.Commission(gross), nil
}

// CardFee resolves the active configuration and applies its card fee rate.
func (s *Catalog) CardFee(ctx context.Context, amount decimal.Decimal, method PaymentMethod) (decimal.Decimal, error) {
	c, err := s.GetActive(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return c.CardFee(amount, method), nil
}

func (s *Catalog) Summary(ctx context.Context) (Summary, error) {
	c, err := s.GetActive(ctx)
	if err != nil {
		return Summary{}, err
	}
	return c.Summary(), nil
}

// Validate rejects configurations that cannot produce a sane settlement.
func Validate(c Configuration) error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrInvalidPricing
	}
	for _, p := range []decimal.Decimal{c.PhysicalUnitPrice, c.DigitalUnitPrice, c.MonthlyFee} {
		if p.IsNegative() {
			return ErrInvalidPricing
		}
	}
	for _, r := range []decimal.Decimal{c.CommissionRate, c.CardFeeRate} {
		if r.IsNegative() || r.GreaterThan(hundred) {
			return ErrInvalidPricing
		}
	}
	// A negative tax rate also keeps the 1+tax/100 divisor from reaching zero.
	if c.TaxRate.IsNegative() {
		return ErrInvalidPricing
	}
	return nil
}
