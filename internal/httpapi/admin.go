package httpapi

import (
	"net/http"
	"time"

	"settlement-platform/internal/fulfillment"
	"settlement-platform/internal/invoice"
	"settlement-platform/internal/pricing"
	"settlement-platform/internal/reporting"
	"settlement-platform/internal/subscription"

	"github.com/gin-gonic/gin"
)

// CreatePricing stores a new inactive configuration.
func (h Handlers) CreatePricing(c *gin.Context) {
	var cfg pricing.Configuration
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, "invalid json")
		return
	}
	cfg.ID = ""
	cfg.Active = false
	out, err := h.Billing.CreatePricing(c.Request.Context(), actor(c), cfg)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h Handlers) ActivatePricing(c *gin.Context) {
	out, err := h.Billing.ActivatePricing(c.Request.Context(), actor(c), c.Param("config_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type outcomeResponse struct {
	Skipped  bool                        `json:"skipped"`
	Reason   string                      `json:"reason,omitempty"`
	Invoice  *invoice.Invoice            `json:"invoice,omitempty"`
	Mirrors  []invoice.Invoice           `json:"mirrors,omitempty"`
	Decision subscription.ChargeDecision `json:"decision"`
}

// IngestFulfillmentEvent runs the same path as the fulfillment.status consumer.
func (h Handlers) IngestFulfillmentEvent(c *gin.Context) {
	var ev fulfillment.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		badRequest(c, "invalid json")
		return
	}
	out, err := h.Billing.HandleFulfillmentEvent(c.Request.Context(), ev)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcomeResponse{
		Skipped:  out.Skipped,
		Reason:   out.Reason,
		Invoice:  out.Invoice,
		Mirrors:  out.Mirrors,
		Decision: out.Decision,
	})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h Handlers) CancelInvoice(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	inv, err := h.Billing.CancelInvoice(c.Request.Context(), actor(c), c.Param("invoice_id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

type reverseRequest struct {
	Memo string `json:"memo"`
}

func (h Handlers) ReverseEntry(c *gin.Context) {
	var req reverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	e, err := h.Billing.ReverseEntry(c.Request.Context(), actor(c), c.Param("entry_id"), req.Memo)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h Handlers) FinancialReport(c *gin.Context) {
	from, ok := parseTimeQuery(c, "from")
	if !ok {
		return
	}
	to, ok := parseTimeQuery(c, "to")
	if !ok {
		return
	}
	sum, err := h.Reports.FinancialSummary(c.Request.Context(), reporting.FinancialSummaryRequest{
		Range:    reporting.TimeRange{From: from, To: to},
		Currency: c.Query("currency"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h Handlers) TriggerSweep(c *gin.Context) {
	rep, err := h.Billing.TriggerSweep(c.Request.Context(), actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if rep.Invoices == nil {
		rep.Invoices = []invoice.Invoice{}
	}
	c.JSON(http.StatusOK, rep)
}

type closePeriodRequest struct {
	Year   int  `json:"year" binding:"required"`
	Month  int  `json:"month" binding:"required,min=1,max=12"`
	DryRun bool `json:"dry_run"`
}

// ClosePeriod bills the uninvoiced units of a past month.
func (h Handlers) ClosePeriod(c *gin.Context) {
	var req closePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "year and month are required")
		return
	}
	month := time.Date(req.Year, time.Month(req.Month), 1, 0, 0, 0, 0, h.Billing.Location())
	rep, err := h.Billing.CloseMonth(c.Request.Context(), actor(c), month, req.DryRun)
	if err != nil {
		writeError(c, err)
		return
	}
	if rep.Invoices == nil {
		rep.Invoices = []invoice.Invoice{}
	}
	c.JSON(http.StatusOK, rep)
}
