package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"settlement-platform/internal/ledger"
	"settlement-platform/pkg/utils"
)

const entryColumns = `id, type, amount, currency, payer_id, payee_id, invoice_id, status,
idempotency_key, reverses_entry_id, memo, created_at`

func scanEntry(row rowScanner) (ledger.Entry, error) {
	var (
		e        ledger.Entry
		reverses sql.NullString
	)
	err := row.Scan(
		&e.ID,
		&e.Type,
		&e.Amount,
		&e.Currency,
		&e.PayerID,
		&e.PayeeID,
		&e.InvoiceID,
		&e.Status,
		&e.IdempotencyKey,
		&reverses,
		&e.Memo,
		&e.CreatedAt,
	)
	e.ReversesEntryID = reverses.String
	return e, err
}

func (t *tx) InsertEntry(ctx context.Context, e ledger.Entry) error {
	const q = `
INSERT INTO ledger_entries (` + entryColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`
	_, err := t.tx.ExecContext(ctx, q,
		e.ID,
		e.Type,
		e.Amount,
		e.Currency,
		e.PayerID,
		e.PayeeID,
		e.InvoiceID,
		e.Status,
		e.IdempotencyKey,
		nullString(e.ReversesEntryID),
		e.Memo,
		e.CreatedAt,
	)
	if utils.IsUniqueViolation(err, "ledger_entries_idempotency_key") {
		return fmt.Errorf("%w: idempotency key %q already posted", ledger.ErrInvalidArgument, e.IdempotencyKey)
	}
	return err
}

func (t *tx) getEntryWhere(ctx context.Context, cond string, arg any) (ledger.Entry, bool, error) {
	q := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE ` + cond + ` LIMIT 1`
	e, err := scanEntry(t.tx.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, false, nil
	}
	if err != nil {
		return ledger.Entry{}, false, err
	}
	return e, true, nil
}

func (t *tx) GetEntry(ctx context.Context, id string) (ledger.Entry, bool, error) {
	return t.getEntryWhere(ctx, "id = $1", id)
}

func (t *tx) FindEntryByIdempotency(ctx context.Context, key string) (ledger.Entry, bool, error) {
	return t.getEntryWhere(ctx, "idempotency_key = $1", key)
}

func (t *tx) FindReversal(ctx context.Context, entryID string) (ledger.Entry, bool, error) {
	return t.getEntryWhere(ctx, "reverses_entry_id = $1", entryID)
}

func (t *tx) ListEntries(ctx context.Context, f ledger.Filter) ([]ledger.Entry, error) {
	var c conds
	if f.Type != "" {
		c.add("type = ?", f.Type)
	}
	if f.Status != "" {
		c.add("status = ?", f.Status)
	}
	if f.InvoiceID != "" {
		c.add("invoice_id = ?", f.InvoiceID)
	}
	if f.Party != "" {
		c.add("(payer_id = ? OR payee_id = ?)", f.Party)
	}
	if !f.From.IsZero() {
		c.add("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		c.add("created_at < ?", f.To)
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries` + c.clause()
	query += ` ORDER BY created_at, id`

	rows, err := t.tx.QueryContext(ctx, query, c.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
