package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"settlement-platform/internal/invoice"
	"settlement-platform/pkg/utils"
)

const invoiceColumns = `id, number, type, customer_id, producer_id, counterpart_id, purchase_ref,
period_start, period_end, physical_count, physical_amount, digital_count, digital_amount,
monthly_fee, package_amount, gross, tax_rate, tax_amount, gross_without_tax, commission_rate,
platform_fee, card_fee_rate, card_fee, net_payout, currency, payment_method, status,
issued_at, due_at, paid_at, payment_reference, last_payment_error, cancel_reason, breakdown,
created_at, updated_at`

func scanInvoice(row rowScanner) (invoice.Invoice, error) {
	var (
		inv         invoice.Invoice
		purchaseRef sql.NullString
		breakdown   []byte
	)
	err := row.Scan(
		&inv.ID,
		&inv.Number,
		&inv.Type,
		&inv.CustomerID,
		&inv.ProducerID,
		&inv.CounterpartID,
		&purchaseRef,
		&inv.PeriodStart,
		&inv.PeriodEnd,
		&inv.PhysicalCount,
		&inv.PhysicalAmount,
		&inv.DigitalCount,
		&inv.DigitalAmount,
		&inv.MonthlyFee,
		&inv.PackageAmount,
		&inv.Gross,
		&inv.TaxRate,
		&inv.TaxAmount,
		&inv.GrossWithoutTax,
		&inv.CommissionRate,
		&inv.PlatformFee,
		&inv.CardFeeRate,
		&inv.CardFee,
		&inv.NetPayout,
		&inv.Currency,
		&inv.PaymentMethod,
		&inv.Status,
		&inv.IssuedAt,
		&inv.DueAt,
		&inv.PaidAt,
		&inv.PaymentReference,
		&inv.LastPaymentError,
		&inv.CancelReason,
		&breakdown,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	inv.PurchaseRef = purchaseRef.String
	inv.Breakdown = breakdown
	return inv, err
}

func invoiceArgs(inv invoice.Invoice) []any {
	return []any{
		inv.ID,
		inv.Number,
		inv.Type,
		inv.CustomerID,
		inv.ProducerID,
		inv.CounterpartID,
		nullString(inv.PurchaseRef),
		inv.PeriodStart,
		inv.PeriodEnd,
		inv.PhysicalCount,
		inv.PhysicalAmount,
		inv.DigitalCount,
		inv.DigitalAmount,
		inv.MonthlyFee,
		inv.PackageAmount,
		inv.Gross,
		inv.TaxRate,
		inv.TaxAmount,
		inv.GrossWithoutTax,
		inv.CommissionRate,
		inv.PlatformFee,
		inv.CardFeeRate,
		inv.CardFee,
		inv.NetPayout,
		inv.Currency,
		inv.PaymentMethod,
		inv.Status,
		inv.IssuedAt,
		inv.DueAt,
		inv.PaidAt,
		inv.PaymentReference,
		inv.LastPaymentError,
		inv.CancelReason,
		[]byte(inv.Breakdown),
		inv.CreatedAt,
		inv.UpdatedAt,
	}
}

func (t *tx) NextInvoiceSequence(ctx context.Context, prefix, period string) (int64, error) {
	const q = `
INSERT INTO invoice_sequences (prefix, period, last_value)
VALUES ($1, $2, 1)
ON CONFLICT (prefix, period) DO UPDATE SET last_value = invoice_sequences.last_value + 1
RETURNING last_value
`
	var n int64
	if err := t.tx.QueryRowContext(ctx, q, prefix, period).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// InsertInvoice runs inside a savepoint so a number conflict leaves the
// surrounding transaction usable for the retry.
func (t *tx) InsertInvoice(ctx context.Context, inv invoice.Invoice) error {
	const q = `
INSERT INTO invoices (` + invoiceColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
        $21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35,$36)
`
	if _, err := t.tx.ExecContext(ctx, `SAVEPOINT insert_invoice`); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, q, invoiceArgs(inv)...)
	if err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT insert_invoice`); rbErr != nil {
			return rbErr
		}
		if utils.IsUniqueViolation(err, "invoices_number_key") {
			return invoice.ErrNumberConflict
		}
		return err
	}
	_, err = t.tx.ExecContext(ctx, `RELEASE SAVEPOINT insert_invoice`)
	return err
}

func (t *tx) UpdateInvoice(ctx context.Context, inv invoice.Invoice) error {
	const q = `
UPDATE invoices SET
  counterpart_id = $2,
  payment_method = $3,
  status = $4,
  paid_at = $5,
  payment_reference = $6,
  last_payment_error = $7,
  cancel_reason = $8,
  updated_at = $9
WHERE id = $1
`
	res, err := t.tx.ExecContext(ctx, q,
		inv.ID,
		inv.CounterpartID,
		inv.PaymentMethod,
		inv.Status,
		inv.PaidAt,
		inv.PaymentReference,
		inv.LastPaymentError,
		inv.CancelReason,
		inv.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return invoice.ErrNotFound
	}
	return nil
}

func (t *tx) GetInvoice(ctx context.Context, id string) (invoice.Invoice, bool, error) {
	const q = `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	inv, err := scanInvoice(t.tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return invoice.Invoice{}, false, nil
	}
	if err != nil {
		return invoice.Invoice{}, false, err
	}
	return inv, true, nil
}

func (t *tx) FindInvoiceByPurchaseRef(ctx context.Context, typ invoice.Type, ref string) (invoice.Invoice, bool, error) {
	const q = `SELECT ` + invoiceColumns + ` FROM invoices WHERE type = $1 AND purchase_ref = $2`
	inv, err := scanInvoice(t.tx.QueryRowContext(ctx, q, typ, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return invoice.Invoice{}, false, nil
	}
	if err != nil {
		return invoice.Invoice{}, false, err
	}
	return inv, true, nil
}

func (t *tx) ListInvoices(ctx context.Context, f invoice.Filter) ([]invoice.Invoice, error) {
	var c conds
	if f.CustomerID != "" {
		c.add("customer_id = ?", f.CustomerID)
	}
	if f.ProducerID != "" {
		c.add("producer_id = ?", f.ProducerID)
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, typ := range f.Types {
			types[i] = string(typ)
		}
		c.add("type = ANY(?)", types)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		c.add("status = ANY(?)", statuses)
	}
	if !f.IssuedFrom.IsZero() {
		c.add("issued_at >= ?", f.IssuedFrom)
	}
	if !f.IssuedTo.IsZero() {
		c.add("issued_at < ?", f.IssuedTo)
	}
	if !f.DueBefore.IsZero() {
		c.add("due_at < ?", f.DueBefore)
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices` + c.clause()
	query += ` ORDER BY issued_at, number`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := t.tx.QueryContext(ctx, query, c.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []invoice.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
