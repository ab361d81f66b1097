package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// PartyPlatform identifies the marketplace itself as payer or payee.
const PartyPlatform = "platform"

// Entry is an immutable append-only record of a money movement.
//
// Money invariant: entries are never updated or deleted. A correction is a new
// entry with the negated amount that points at the entry it offsets.
type Entry struct {
	ID   string    `json:"id" db:"id"`
	Type EntryType `json:"type" db:"type"`

	Amount   decimal.Decimal `json:"amount" db:"amount"`
	Currency string          `json:"currency" db:"currency"`

	PayerID string `json:"payer_id" db:"payer_id"`
	PayeeID string `json:"payee_id" db:"payee_id"`

	InvoiceID string      `json:"invoice_id,omitempty" db:"invoice_id"`
	Status    EntryStatus `json:"status" db:"status"`

	// IdempotencyKey is required for safe retries of money-posting operations.
	IdempotencyKey string `json:"idempotency_key" db:"idempotency_key"`

	ReversesEntryID string `json:"reverses_entry_id,omitempty" db:"reverses_entry_id"`
	Memo            string `json:"memo,omitempty" db:"memo"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EntryType string

const (
	EntryTypeCustomerCharge  EntryType = "customer_charge"
	EntryTypeProducerPayout  EntryType = "producer_payout"
	EntryTypePackagePurchase EntryType = "package_purchase"
	EntryTypePaymentReceived EntryType = "payment_received"
)

type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusCompleted EntryStatus = "completed"
)

// Filter narrows Sum and List queries. Zero fields match everything.
type Filter struct {
	Type      EntryType
	Status    EntryStatus
	InvoiceID string
	// Party matches either side of the movement.
	Party string
	From  time.Time
	To    time.Time
}

func (f Filter) Match(e Entry) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.InvoiceID != "" && e.InvoiceID != f.InvoiceID {
		return false
	}
	if f.Party != "" && e.PayerID != f.Party && e.PayeeID != f.Party {
		return false
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

// Summary aggregates entries over a time range.
type Summary struct {
	From     time.Time                     `json:"from"`
	To       time.Time                     `json:"to"`
	ByType   map[EntryType]decimal.Decimal `json:"by_type"`
	Pending  decimal.Decimal               `json:"pending"`
	Settled  decimal.Decimal               `json:"settled"`
	Reversed decimal.Decimal               `json:"reversed"`
	Entries  int                           `json:"entries"`
}
