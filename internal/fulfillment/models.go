package fulfillment

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Unit is one fulfillment job ordered by a customer (center) and, for physical
// work, produced by a producer. Units are owned by the order-management side;
// billing only records the usage decision and the invoice that covered them.
//
// Money invariant: PriceSnapshot is captured once, when usage is recorded, and
// is the only price ever used for this unit afterwards. A nil snapshot on a
// recorded unit means the unit was covered by a package credit.
type Unit struct {
	ID         string `json:"id" db:"id"`
	CustomerID string `json:"customer_id" db:"customer_id"`
	// ProducerID is empty for digital-only work handled by the platform.
	ProducerID string `json:"producer_id,omitempty" db:"producer_id"`

	IsPhysical            bool `json:"is_physical" db:"is_physical"`
	HasDigitalDeliverable bool `json:"has_digital_deliverable" db:"has_digital_deliverable"`

	Status Status `json:"status" db:"status"`

	PriceSnapshot    *decimal.Decimal `json:"price_snapshot,omitempty" db:"price_snapshot"`
	UsageRecordedAt  *time.Time       `json:"usage_recorded_at,omitempty" db:"usage_recorded_at"`
	CoveredByPackage bool             `json:"covered_by_package" db:"covered_by_package"`

	// InvoiceID is set when the unit appears in a customer invoice breakdown.
	InvoiceID string `json:"invoice_id,omitempty" db:"invoice_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusShipped    Status = "shipped"
	StatusCompleted  Status = "completed"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// TerminalSuccess reports whether the status makes a unit billable.
func (s Status) TerminalSuccess() bool {
	return s == StatusCompleted || s == StatusDelivered
}

// DigitalOnly reports whether the unit is charged at the digital price.
func (u Unit) DigitalOnly() bool { return !u.IsPhysical }

// UsageRecorded reports whether the charge decision has been made for the unit.
func (u Unit) UsageRecorded() bool { return u.UsageRecordedAt != nil }

// Billable reports whether the unit carries an incremental charge that still
// needs to be invoiced.
func (u Unit) Billable() bool {
	return u.Status.TerminalSuccess() && u.UsageRecorded() && u.PriceSnapshot != nil && u.InvoiceID == ""
}

// Event is the inbound lifecycle notification from the fulfillment side.
type Event struct {
	UnitID                string           `json:"unit_id"`
	CustomerID            string           `json:"customer_id"`
	ProducerID            string           `json:"producer_id,omitempty"`
	IsPhysical            bool             `json:"is_physical"`
	HasDigitalDeliverable bool             `json:"has_digital_deliverable"`
	PriceSnapshot         *decimal.Decimal `json:"price_snapshot,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	TerminalStatus        Status           `json:"terminal_status"`
}

var ErrInvalidEvent = errors.New("fulfillment: invalid event")

// Validate checks the event shape. Non-terminal statuses are valid events;
// they simply do not trigger invoicing.
func (e Event) Validate() error {
	if strings.TrimSpace(e.UnitID) == "" || strings.TrimSpace(e.CustomerID) == "" {
		return ErrInvalidEvent
	}
	if e.CreatedAt.IsZero() {
		return ErrInvalidEvent
	}
	if !e.IsPhysical && !e.HasDigitalDeliverable {
		return ErrInvalidEvent
	}
	if e.PriceSnapshot != nil && e.PriceSnapshot.IsNegative() {
		return ErrInvalidEvent
	}
	switch e.TerminalStatus {
	case StatusPending, StatusInProgress, StatusShipped, StatusCompleted, StatusDelivered, StatusCancelled:
	default:
		return ErrInvalidEvent
	}
	return nil
}

// Apply merges the event into an existing unit (or a zero Unit for a new one).
// Fields owned by billing (usage decision, snapshot, invoice) are never
// overwritten once set.
func (e Event) Apply(u Unit, now time.Time) Unit {
	if u.ID == "" {
		u.ID = e.UnitID
		u.CustomerID = e.CustomerID
		u.CreatedAt = e.CreatedAt.UTC()
		u.IsPhysical = e.IsPhysical
		u.HasDigitalDeliverable = e.HasDigitalDeliverable
	}
	if u.ProducerID == "" {
		u.ProducerID = e.ProducerID
	}
	if !u.UsageRecorded() && u.PriceSnapshot == nil && e.PriceSnapshot != nil {
		p := e.PriceSnapshot.Round(2)
		u.PriceSnapshot = &p
	}
	u.HasDigitalDeliverable = u.HasDigitalDeliverable || e.HasDigitalDeliverable
	u.Status = e.TerminalStatus
	u.UpdatedAt = now
	return u
}
