package postgres

import (
	"context"
	"database/sql"
	"errors"

	"settlement-platform/internal/subscription"
)

const subscriptionColumns = `customer_id, plan_id, plan_type, status, units_this_month, digital_this_month,
cost_this_month, monthly_fee_paid, package_credits_granted, package_credits_used, last_monthly_reset,
created_at, updated_at`

func scanSubscription(row rowScanner) (subscription.Subscription, error) {
	var (
		s      subscription.Subscription
		planID sql.NullString
	)
	err := row.Scan(
		&s.CustomerID,
		&planID,
		&s.PlanType,
		&s.Status,
		&s.UnitsThisMonth,
		&s.DigitalThisMonth,
		&s.CostThisMonth,
		&s.MonthlyFeePaid,
		&s.PackageCreditsGranted,
		&s.PackageCreditsUsed,
		&s.LastMonthlyReset,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	s.PlanID = planID.String
	return s, err
}

// GetSubscription locks the row for the rest of the transaction so credit
// consumption is serialized per customer.
func (t *tx) GetSubscription(ctx context.Context, customerID string) (subscription.Subscription, bool, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE customer_id = $1`
	if !t.readOnly {
		q += ` FOR UPDATE`
	}
	s, err := scanSubscription(t.tx.QueryRowContext(ctx, q, customerID))
	if errors.Is(err, sql.ErrNoRows) {
		return subscription.Subscription{}, false, nil
	}
	if err != nil {
		return subscription.Subscription{}, false, err
	}
	return s, true, nil
}

func (t *tx) SaveSubscription(ctx context.Context, s subscription.Subscription) error {
	const q = `
INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (customer_id) DO UPDATE SET
  plan_id = EXCLUDED.plan_id,
  plan_type = EXCLUDED.plan_type,
  status = EXCLUDED.status,
  units_this_month = EXCLUDED.units_this_month,
  digital_this_month = EXCLUDED.digital_this_month,
  cost_this_month = EXCLUDED.cost_this_month,
  monthly_fee_paid = EXCLUDED.monthly_fee_paid,
  package_credits_granted = EXCLUDED.package_credits_granted,
  package_credits_used = EXCLUDED.package_credits_used,
  last_monthly_reset = EXCLUDED.last_monthly_reset,
  updated_at = EXCLUDED.updated_at
`
	_, err := t.tx.ExecContext(ctx, q,
		s.CustomerID,
		nullString(s.PlanID),
		s.PlanType,
		s.Status,
		s.UnitsThisMonth,
		s.DigitalThisMonth,
		s.CostThisMonth,
		s.MonthlyFeePaid,
		s.PackageCreditsGranted,
		s.PackageCreditsUsed,
		s.LastMonthlyReset,
		s.CreatedAt,
		s.UpdatedAt,
	)
	return err
}

func (t *tx) ListSubscriptions(ctx context.Context) ([]subscription.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions ORDER BY customer_id`
	rows, err := t.tx.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []subscription.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *tx) GetPlan(ctx context.Context, id string) (subscription.Plan, bool, error) {
	const q = `
SELECT id, name, type, package_credits, package_price, monthly_fee, created_at
FROM plans WHERE id = $1
`
	var p subscription.Plan
	err := t.tx.QueryRowContext(ctx, q, id).Scan(
		&p.ID,
		&p.Name,
		&p.Type,
		&p.PackageCredits,
		&p.PackagePrice,
		&p.MonthlyFee,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return subscription.Plan{}, false, nil
	}
	if err != nil {
		return subscription.Plan{}, false, err
	}
	return p, true, nil
}

func (t *tx) SavePlan(ctx context.Context, p subscription.Plan) error {
	const q = `
INSERT INTO plans (id, name, type, package_credits, package_price, monthly_fee, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  type = EXCLUDED.type,
  package_credits = EXCLUDED.package_credits,
  package_price = EXCLUDED.package_price,
  monthly_fee = EXCLUDED.monthly_fee
`
	_, err := t.tx.ExecContext(ctx, q,
		p.ID,
		p.Name,
		p.Type,
		p.PackageCredits,
		p.PackagePrice,
		p.MonthlyFee,
		p.CreatedAt,
	)
	return err
}
