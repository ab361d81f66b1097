package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// FinancialSummaryRequest selects invoices issued in [From, To).
type FinancialSummaryRequest struct {
	Range    TimeRange `json:"range"`
	Currency string    `json:"currency,omitempty"`
}

// CustomerRevenue aggregates customer and package invoices.
type CustomerRevenue struct {
	Invoices int             `json:"invoices"`
	Physical decimal.Decimal `json:"physical"`
	Digital  decimal.Decimal `json:"digital"`
	// MonthlyFees is platform income; producers never receive a share of it.
	MonthlyFees decimal.Decimal `json:"monthly_fees"`
	Packages    decimal.Decimal `json:"packages"`
	Total       decimal.Decimal `json:"total"`
	Tax         decimal.Decimal `json:"tax"`
}

// ProducerSettlement aggregates producer mirror invoices.
type ProducerSettlement struct {
	Invoices   int             `json:"invoices"`
	Gross      decimal.Decimal `json:"gross"`
	Commission decimal.Decimal `json:"commission"`
	CardFees   decimal.Decimal `json:"card_fees"`
	Net        decimal.Decimal `json:"net"`
}

type FinancialSummary struct {
	Range    TimeRange `json:"range"`
	Currency string    `json:"currency"`

	Customers CustomerRevenue    `json:"customers"`
	Producers ProducerSettlement `json:"producers"`

	// Collected is the sum of completed payment entries in the range.
	Collected   decimal.Decimal `json:"collected"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Cancelled   int             `json:"cancelled"`

	NetPlatformEarnings decimal.Decimal `json:"net_platform_earnings"`
}
