package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"settlement-platform/pkg/utils"
)

type migration struct {
	Version string
	Name    string
	Up      string
}

var migrations = []migration{
	{
		Version: "20260301000001",
		Name:    "create_pricing_configurations",
		Up: `
CREATE TABLE IF NOT EXISTS pricing_configurations (
    id                  TEXT PRIMARY KEY,
    name                TEXT NOT NULL,
    description         TEXT NOT NULL DEFAULT '',
    effective_date      TIMESTAMPTZ NOT NULL,
    physical_unit_price NUMERIC(12,2) NOT NULL,
    digital_unit_price  NUMERIC(12,2) NOT NULL,
    monthly_fee         NUMERIC(12,2) NOT NULL,
    commission_rate     NUMERIC(6,3) NOT NULL,
    card_fee_rate       NUMERIC(6,3) NOT NULL,
    tax_rate            NUMERIC(6,3) NOT NULL,
    active              BOOLEAN NOT NULL DEFAULT FALSE,
    created_at          TIMESTAMPTZ NOT NULL,
    updated_at          TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_pricing_single_active
    ON pricing_configurations (active) WHERE active;
`,
	},
	{
		Version: "20260301000002",
		Name:    "create_plans_and_subscriptions",
		Up: `
CREATE TABLE IF NOT EXISTS plans (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    type            TEXT NOT NULL,
    package_credits INT NOT NULL DEFAULT 0,
    package_price   NUMERIC(12,2) NOT NULL DEFAULT 0,
    monthly_fee     NUMERIC(12,2),
    created_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS subscriptions (
    customer_id             TEXT PRIMARY KEY,
    plan_id                 TEXT REFERENCES plans (id),
    plan_type               TEXT NOT NULL,
    status                  TEXT NOT NULL,
    units_this_month        INT NOT NULL DEFAULT 0,
    digital_this_month      INT NOT NULL DEFAULT 0,
    cost_this_month         NUMERIC(12,2) NOT NULL DEFAULT 0,
    monthly_fee_paid        BOOLEAN NOT NULL DEFAULT FALSE,
    package_credits_granted INT NOT NULL DEFAULT 0,
    package_credits_used    INT NOT NULL DEFAULT 0,
    last_monthly_reset      TIMESTAMPTZ NOT NULL,
    created_at              TIMESTAMPTZ NOT NULL,
    updated_at              TIMESTAMPTZ NOT NULL,
    CONSTRAINT subscriptions_credits_check CHECK (package_credits_used <= package_credits_granted)
);
`,
	},
	{
		Version: "20260301000003",
		Name:    "create_fulfillment_units",
		Up: `
CREATE TABLE IF NOT EXISTS fulfillment_units (
    id                      TEXT PRIMARY KEY,
    customer_id             TEXT NOT NULL,
    producer_id             TEXT NOT NULL DEFAULT '',
    is_physical             BOOLEAN NOT NULL,
    has_digital_deliverable BOOLEAN NOT NULL,
    status                  TEXT NOT NULL,
    price_snapshot          NUMERIC(12,2),
    usage_recorded_at       TIMESTAMPTZ,
    covered_by_package      BOOLEAN NOT NULL DEFAULT FALSE,
    invoice_id              TEXT NOT NULL DEFAULT '',
    created_at              TIMESTAMPTZ NOT NULL,
    updated_at              TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_units_customer_created ON fulfillment_units (customer_id, created_at);
CREATE INDEX IF NOT EXISTS idx_units_uninvoiced ON fulfillment_units (customer_id) WHERE invoice_id = '';
`,
	},
	{
		Version: "20260301000004",
		Name:    "create_invoices",
		Up: `
CREATE TABLE IF NOT EXISTS invoice_sequences (
    prefix     TEXT NOT NULL,
    period     TEXT NOT NULL,
    last_value BIGINT NOT NULL,
    PRIMARY KEY (prefix, period)
);

CREATE TABLE IF NOT EXISTS invoices (
    id                 TEXT PRIMARY KEY,
    number             TEXT NOT NULL,
    type               TEXT NOT NULL,
    customer_id        TEXT NOT NULL DEFAULT '',
    producer_id        TEXT NOT NULL DEFAULT '',
    counterpart_id     TEXT NOT NULL DEFAULT '',
    purchase_ref       TEXT,
    period_start       TIMESTAMPTZ NOT NULL,
    period_end         TIMESTAMPTZ NOT NULL,
    physical_count     INT NOT NULL DEFAULT 0,
    physical_amount    NUMERIC(12,2) NOT NULL DEFAULT 0,
    digital_count      INT NOT NULL DEFAULT 0,
    digital_amount     NUMERIC(12,2) NOT NULL DEFAULT 0,
    monthly_fee        NUMERIC(12,2) NOT NULL DEFAULT 0,
    package_amount     NUMERIC(12,2) NOT NULL DEFAULT 0,
    gross              NUMERIC(12,2) NOT NULL,
    tax_rate           NUMERIC(6,3) NOT NULL,
    tax_amount         NUMERIC(12,2) NOT NULL,
    gross_without_tax  NUMERIC(12,2) NOT NULL,
    commission_rate    NUMERIC(6,3) NOT NULL,
    platform_fee       NUMERIC(12,2) NOT NULL,
    card_fee_rate      NUMERIC(6,3) NOT NULL,
    card_fee           NUMERIC(12,2) NOT NULL,
    net_payout         NUMERIC(12,2) NOT NULL,
    currency           TEXT NOT NULL,
    payment_method     TEXT NOT NULL DEFAULT '',
    status             TEXT NOT NULL,
    issued_at          TIMESTAMPTZ NOT NULL,
    due_at             TIMESTAMPTZ NOT NULL,
    paid_at            TIMESTAMPTZ,
    payment_reference  TEXT NOT NULL DEFAULT '',
    last_payment_error TEXT NOT NULL DEFAULT '',
    cancel_reason      TEXT NOT NULL DEFAULT '',
    breakdown          JSONB NOT NULL,
    created_at         TIMESTAMPTZ NOT NULL,
    updated_at         TIMESTAMPTZ NOT NULL,
    CONSTRAINT invoices_number_key UNIQUE (number),
    CONSTRAINT invoices_gross_check CHECK (gross = physical_amount + digital_amount + monthly_fee + package_amount)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_purchase_ref ON invoices (type, purchase_ref) WHERE purchase_ref IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_invoices_customer_issued ON invoices (customer_id, issued_at);
CREATE INDEX IF NOT EXISTS idx_invoices_producer_issued ON invoices (producer_id, issued_at);
CREATE INDEX IF NOT EXISTS idx_invoices_open_due ON invoices (due_at) WHERE status IN ('issued', 'sent');
`,
	},
	{
		Version: "20260301000005",
		Name:    "create_ledger_entries",
		Up: `
CREATE TABLE IF NOT EXISTS ledger_entries (
    id                TEXT PRIMARY KEY,
    type              TEXT NOT NULL,
    amount            NUMERIC(12,2) NOT NULL,
    currency          TEXT NOT NULL,
    payer_id          TEXT NOT NULL,
    payee_id          TEXT NOT NULL,
    invoice_id        TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL,
    idempotency_key   TEXT NOT NULL,
    reverses_entry_id TEXT REFERENCES ledger_entries (id),
    memo              TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL,
    CONSTRAINT ledger_entries_idempotency_key UNIQUE (idempotency_key)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_single_reversal ON ledger_entries (reverses_entry_id) WHERE reverses_entry_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_ledger_invoice ON ledger_entries (invoice_id);
CREATE INDEX IF NOT EXISTS idx_ledger_created ON ledger_entries (created_at);
`,
	},
	{
		Version: "20260301000006",
		Name:    "create_audit_events",
		Up: `
CREATE TABLE IF NOT EXISTS audit_events (
    id         TEXT PRIMARY KEY,
    type       TEXT NOT NULL,
    actor_id   TEXT NOT NULL,
    actor_role TEXT NOT NULL DEFAULT '',
    ip_address TEXT NOT NULL DEFAULT '',
    target_id  TEXT NOT NULL DEFAULT '',
    message    TEXT NOT NULL DEFAULT '',
    metadata   TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_target ON audit_events (target_id, created_at);
`,
	},
}

// Migrate applies pending migrations in version order. Each migration runs in
// its own transaction and is recorded in schema_migrations.
func Migrate(ctx context.Context, db *sql.DB) (applied int, err error) {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		err := utils.WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
			if err := utils.AdvisoryXactLock(ctx, tx, "schema_migrations"); err != nil {
				return err
			}
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version,
			).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return nil
			}
			if _, err := tx.ExecContext(ctx, m.Up); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name,
			); err != nil {
				return err
			}
			applied++
			return nil
		})
		if err != nil {
			return applied, fmt.Errorf("migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return applied, nil
}
