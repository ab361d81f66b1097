package fulfillment

import (
	"context"
	"time"
)

// Query selects units for billing. Zero fields match everything.
type Query struct {
	CustomerID string

	// From and To bound CreatedAt. Both are inclusive unless the matching
	// Exclusive flag is set.
	From          time.Time
	FromExclusive bool
	To            time.Time
	ToExclusive   bool

	TerminalOnly bool
	Uninvoiced   bool
	PhysicalOnly bool
}

func (q Query) Match(u Unit) bool {
	if q.CustomerID != "" && u.CustomerID != q.CustomerID {
		return false
	}
	if !q.From.IsZero() {
		if q.FromExclusive && !u.CreatedAt.After(q.From) {
			return false
		}
		if !q.FromExclusive && u.CreatedAt.Before(q.From) {
			return false
		}
	}
	if !q.To.IsZero() {
		if q.ToExclusive && !u.CreatedAt.Before(q.To) {
			return false
		}
		if !q.ToExclusive && u.CreatedAt.After(q.To) {
			return false
		}
	}
	if q.TerminalOnly && !u.Status.TerminalSuccess() {
		return false
	}
	if q.Uninvoiced && u.InvoiceID != "" {
		return false
	}
	if q.PhysicalOnly && !u.IsPhysical {
		return false
	}
	return true
}

// Repository abstracts the billing view of fulfillment units.
type Repository interface {
	GetUnit(ctx context.Context, id string) (Unit, bool, error)
	SaveUnit(ctx context.Context, u Unit) error
	ListUnits(ctx context.Context, q Query) ([]Unit, error)
}
