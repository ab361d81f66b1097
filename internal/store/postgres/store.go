// Package postgres is the production Store backed by database/sql and the pgx
// stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"settlement-platform/internal/store"
	"settlement-platform/pkg/utils"
)

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) WithTx(ctx context.Context, fn store.TxFunc) error {
	return utils.WithTx(ctx, s.db, nil, func(ctx context.Context, sqlTx *sql.Tx) error {
		return fn(ctx, &tx{tx: sqlTx})
	})
}

// Read runs fn in a READ ONLY transaction so multi-table reports see one snapshot.
func (s *Store) Read(ctx context.Context, fn store.TxFunc) error {
	opts := &sql.TxOptions{ReadOnly: true}
	return utils.WithTx(ctx, s.db, opts, func(ctx context.Context, sqlTx *sql.Tx) error {
		return fn(ctx, &tx{tx: sqlTx, readOnly: true})
	})
}

type tx struct {
	tx       *sql.Tx
	readOnly bool
}

var _ store.Tx = (*tx)(nil)

// LockBillingKey takes a transaction-scoped advisory lock on key.
func (t *tx) LockBillingKey(ctx context.Context, key string) error {
	return utils.AdvisoryXactLock(ctx, t.tx, key)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// conds builds a WHERE clause. Each ? in a condition becomes the positional
// placeholder of its argument.
type conds struct {
	where []string
	args  []any
}

func (c *conds) add(cond string, arg any) {
	c.args = append(c.args, arg)
	c.where = append(c.where, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(c.args))))
}

func (c *conds) raw(cond string) { c.where = append(c.where, cond) }

func (c *conds) clause() string {
	if len(c.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.where, " AND ")
}
