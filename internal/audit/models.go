package audit

import "time"

// Event is an immutable, append-only record of an operator action.
//
// Invariants:
// - Events are never updated or deleted.
// - Actor and ip capture are best-effort; do not block money flows on audit failures.

type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// ActorID is the authenticated user causing the event, or the CLI operator name.
	ActorID   string `json:"actor_id,omitempty" db:"actor_id"`
	ActorRole string `json:"actor_role,omitempty" db:"actor_role"`
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// TargetID is the configuration, invoice, ledger entry or customer acted on.
	TargetID string `json:"target_id,omitempty" db:"target_id"`

	Message  string `json:"message,omitempty" db:"message"`
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypePricingCreated    EventType = "pricing_created"
	EventTypePricingActivated  EventType = "pricing_activated"
	EventTypeLedgerReversed    EventType = "ledger_reversed"
	EventTypeInvoiceCancelled  EventType = "invoice_cancelled"
	EventTypePackagePurchased  EventType = "package_purchased"
	EventTypeUsageRecalculated EventType = "usage_recalculated"
	EventTypeSweepTriggered    EventType = "sweep_triggered"
	EventTypePeriodClosed      EventType = "period_closed"
)

// Known reports whether t is one of the recorded operator actions.
func (t EventType) Known() bool {
	switch t {
	case EventTypePricingCreated, EventTypePricingActivated, EventTypeLedgerReversed,
		EventTypeInvoiceCancelled, EventTypePackagePurchased, EventTypeUsageRecalculated,
		EventTypeSweepTriggered, EventTypePeriodClosed:
		return true
	}
	return false
}

// Actor identifies who performed an action.
type Actor struct {
	ID   string
	Role string
	IP   string
}
