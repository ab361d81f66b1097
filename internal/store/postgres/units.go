package postgres

import (
	"context"
	"database/sql"
	"errors"

	"settlement-platform/internal/fulfillment"
)

const unitColumns = `id, customer_id, producer_id, is_physical, has_digital_deliverable, status,
price_snapshot, usage_recorded_at, covered_by_package, invoice_id, created_at, updated_at`

func scanUnit(row rowScanner) (fulfillment.Unit, error) {
	var u fulfillment.Unit
	err := row.Scan(
		&u.ID,
		&u.CustomerID,
		&u.ProducerID,
		&u.IsPhysical,
		&u.HasDigitalDeliverable,
		&u.Status,
		&u.PriceSnapshot,
		&u.UsageRecordedAt,
		&u.CoveredByPackage,
		&u.InvoiceID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func (t *tx) GetUnit(ctx context.Context, id string) (fulfillment.Unit, bool, error) {
	q := `SELECT ` + unitColumns + ` FROM fulfillment_units WHERE id = $1`
	if !t.readOnly {
		q += ` FOR UPDATE`
	}
	u, err := scanUnit(t.tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return fulfillment.Unit{}, false, nil
	}
	if err != nil {
		return fulfillment.Unit{}, false, err
	}
	return u, true, nil
}

func (t *tx) SaveUnit(ctx context.Context, u fulfillment.Unit) error {
	const q = `
INSERT INTO fulfillment_units (` + unitColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  producer_id = EXCLUDED.producer_id,
  has_digital_deliverable = EXCLUDED.has_digital_deliverable,
  status = EXCLUDED.status,
  price_snapshot = EXCLUDED.price_snapshot,
  usage_recorded_at = EXCLUDED.usage_recorded_at,
  covered_by_package = EXCLUDED.covered_by_package,
  invoice_id = EXCLUDED.invoice_id,
  updated_at = EXCLUDED.updated_at
`
	_, err := t.tx.ExecContext(ctx, q,
		u.ID,
		u.CustomerID,
		u.ProducerID,
		u.IsPhysical,
		u.HasDigitalDeliverable,
		u.Status,
		u.PriceSnapshot,
		u.UsageRecordedAt,
		u.CoveredByPackage,
		u.InvoiceID,
		u.CreatedAt,
		u.UpdatedAt,
	)
	return err
}

func (t *tx) ListUnits(ctx context.Context, q fulfillment.Query) ([]fulfillment.Unit, error) {
	var c conds
	if q.CustomerID != "" {
		c.add("customer_id = ?", q.CustomerID)
	}
	if !q.From.IsZero() {
		if q.FromExclusive {
			c.add("created_at > ?", q.From)
		} else {
			c.add("created_at >= ?", q.From)
		}
	}
	if !q.To.IsZero() {
		if q.ToExclusive {
			c.add("created_at < ?", q.To)
		} else {
			c.add("created_at <= ?", q.To)
		}
	}
	if q.TerminalOnly {
		c.add("status = ANY(?)", []string{string(fulfillment.StatusCompleted), string(fulfillment.StatusDelivered)})
	}
	if q.Uninvoiced {
		c.raw("invoice_id = ''")
	}
	if q.PhysicalOnly {
		c.raw("is_physical")
	}

	query := `SELECT ` + unitColumns + ` FROM fulfillment_units` + c.clause()
	query += ` ORDER BY created_at, id`

	rows, err := t.tx.QueryContext(ctx, query, c.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fulfillment.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
