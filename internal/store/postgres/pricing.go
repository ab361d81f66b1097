package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"settlement-platform/internal/pricing"
)

const configColumns = `id, name, description, effective_date, physical_unit_price, digital_unit_price,
monthly_fee, commission_rate, card_fee_rate, tax_rate, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfiguration(row rowScanner) (pricing.Configuration, error) {
	var c pricing.Configuration
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Description,
		&c.EffectiveDate,
		&c.PhysicalUnitPrice,
		&c.DigitalUnitPrice,
		&c.MonthlyFee,
		&c.CommissionRate,
		&c.CardFeeRate,
		&c.TaxRate,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (t *tx) InsertConfiguration(ctx context.Context, c pricing.Configuration) error {
	const q = `
INSERT INTO pricing_configurations (` + configColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`
	_, err := t.tx.ExecContext(ctx, q,
		c.ID,
		c.Name,
		c.Description,
		c.EffectiveDate,
		c.PhysicalUnitPrice,
		c.DigitalUnitPrice,
		c.MonthlyFee,
		c.CommissionRate,
		c.CardFeeRate,
		c.TaxRate,
		c.Active,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func (t *tx) GetConfiguration(ctx context.Context, id string) (pricing.Configuration, bool, error) {
	const q = `SELECT ` + configColumns + ` FROM pricing_configurations WHERE id = $1`
	c, err := scanConfiguration(t.tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.Configuration{}, false, nil
	}
	if err != nil {
		return pricing.Configuration{}, false, err
	}
	return c, true, nil
}

func (t *tx) ActiveConfiguration(ctx context.Context) (pricing.Configuration, bool, error) {
	const q = `SELECT ` + configColumns + ` FROM pricing_configurations WHERE active LIMIT 1`
	c, err := scanConfiguration(t.tx.QueryRowContext(ctx, q))
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.Configuration{}, false, nil
	}
	if err != nil {
		return pricing.Configuration{}, false, err
	}
	return c, true, nil
}

func (t *tx) ListConfigurations(ctx context.Context) ([]pricing.Configuration, error) {
	const q = `SELECT ` + configColumns + ` FROM pricing_configurations ORDER BY created_at DESC, id`
	rows, err := t.tx.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pricing.Configuration
	for rows.Next() {
		c, err := scanConfiguration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ActivateConfiguration deactivates every other configuration before
// activating id; the partial unique index rejects two active rows.
func (t *tx) ActivateConfiguration(ctx context.Context, id string, at time.Time) error {
	if _, err := t.tx.ExecContext(ctx, `
UPDATE pricing_configurations SET active = FALSE, updated_at = $2
WHERE active AND id <> $1
`, id, at); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `
UPDATE pricing_configurations SET active = TRUE, updated_at = $2
WHERE id = $1
`, id, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return pricing.ErrNotFound
	}
	return nil
}
