// Package store ties the per-domain repositories together behind one
// transaction so that credit consumption, unit transitions, invoices and
// ledger entries commit atomically.
package store

import (
	"context"

	"settlement-platform/internal/audit"
	"settlement-platform/internal/fulfillment"
	"settlement-platform/internal/invoice"
	"settlement-platform/internal/ledger"
	"settlement-platform/internal/pricing"
	"settlement-platform/internal/subscription"
)

// Tx is a unit of work over every billing repository.
type Tx interface {
	pricing.Repository
	subscription.Repository
	fulfillment.Repository
	invoice.Repository
	ledger.Repository
	audit.Repository

	// LockBillingKey serializes work on key until the transaction ends.
	LockBillingKey(ctx context.Context, key string) error
}

// TxFunc is the unit of work executed inside a transaction.
type TxFunc func(ctx context.Context, tx Tx) error

// Store runs units of work.
// - If fn returns an error every write is discarded and the error is returned.
// - If fn panics every write is discarded and the panic is re-thrown.
type Store interface {
	WithTx(ctx context.Context, fn TxFunc) error
	// Read runs fn against a consistent read-only view. Writes inside fn are
	// rejected or discarded depending on the backend.
	Read(ctx context.Context, fn TxFunc) error
}
