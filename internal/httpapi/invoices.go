package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"settlement-platform/internal/billing"
	"settlement-platform/internal/invoice"
	"settlement-platform/internal/pricing"
	"settlement-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

const maxListLimit = 200

func (h Handlers) GetActivePricing(c *gin.Context) {
	sum, err := h.Billing.PricingSummary(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// visible reports whether the caller may see inv. Centers see their own
// customer and package invoices; producers see their payout statements.
func visible(r rbac.CustomerRole, inv invoice.Invoice) bool {
	switch r.Kind {
	case rbac.KindAdmin:
		return true
	case rbac.KindCenter:
		return inv.Type != invoice.TypeProducer && inv.CustomerID == r.PartyID
	case rbac.KindProducer:
		return inv.Type == invoice.TypeProducer && inv.ProducerID == r.PartyID
	default:
		return false
	}
}

// scopedFilter narrows a listing to what the caller may see.
func scopedFilter(r rbac.CustomerRole, f invoice.Filter) invoice.Filter {
	switch r.Kind {
	case rbac.KindCenter:
		f.CustomerID = r.PartyID
		f.ProducerID = ""
		f.Types = keepTypes(f.Types, invoice.TypeCustomer, invoice.TypePackagePurchase)
	case rbac.KindProducer:
		f.ProducerID = r.PartyID
		f.CustomerID = ""
		f.Types = []invoice.Type{invoice.TypeProducer}
	}
	return f
}

func keepTypes(requested []invoice.Type, allowed ...invoice.Type) []invoice.Type {
	if len(requested) == 0 {
		return allowed
	}
	var out []invoice.Type
	for _, t := range requested {
		for _, a := range allowed {
			if t == a {
				out = append(out, t)
			}
		}
	}
	if len(out) == 0 {
		// Nothing the caller may see; a type that never matches keeps the listing empty.
		return []invoice.Type{"none"}
	}
	return out
}

func parseListFilter(c *gin.Context) (invoice.Filter, bool) {
	f := invoice.Filter{
		CustomerID: c.Query("customer_id"),
		ProducerID: c.Query("producer_id"),
		Limit:      50,
	}
	if t := c.Query("type"); t != "" {
		f.Types = []invoice.Type{invoice.Type(t)}
	}
	if s := c.Query("status"); s != "" {
		f.Statuses = []invoice.Status{invoice.Status(s)}
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return invoice.Filter{}, false
		}
		if n > maxListLimit {
			n = maxListLimit
		}
		f.Limit = n
	}
	var ok bool
	if f.IssuedFrom, ok = parseTimeQuery(c, "from"); !ok {
		return invoice.Filter{}, false
	}
	if f.IssuedTo, ok = parseTimeQuery(c, "to"); !ok {
		return invoice.Filter{}, false
	}
	return f, true
}

// parseTimeQuery accepts RFC3339 or a plain date.
func parseTimeQuery(c *gin.Context, key string) (time.Time, bool) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, true
	}
	badRequest(c, key+" must be RFC3339 or YYYY-MM-DD")
	return time.Time{}, false
}

func (h Handlers) ListInvoices(c *gin.Context) {
	r, ok := callerRole(c)
	if !ok {
		return
	}
	f, ok := parseListFilter(c)
	if !ok {
		return
	}
	invs, err := h.Billing.ListInvoices(c.Request.Context(), scopedFilter(r, f))
	if err != nil {
		writeError(c, err)
		return
	}
	if invs == nil {
		invs = []invoice.Invoice{}
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invs})
}

// loadVisible fetches an invoice and hides it (404) from callers who may not see it.
func (h Handlers) loadVisible(c *gin.Context) (invoice.Invoice, bool) {
	r, ok := callerRole(c)
	if !ok {
		return invoice.Invoice{}, false
	}
	inv, err := h.Billing.GetInvoice(c.Request.Context(), c.Param("invoice_id"))
	if err != nil {
		writeError(c, err)
		return invoice.Invoice{}, false
	}
	if !visible(r, inv) {
		writeError(c, invoice.ErrNotFound)
		return invoice.Invoice{}, false
	}
	return inv, true
}

func (h Handlers) GetInvoice(c *gin.Context) {
	inv, ok := h.loadVisible(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, inv)
}

type checkoutRequest struct {
	PaymentMethod pricing.PaymentMethod `json:"payment_method"`
}

func (h Handlers) Checkout(c *gin.Context) {
	inv, ok := h.loadVisible(c)
	if !ok {
		return
	}
	var req checkoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid json")
			return
		}
	}
	sess, err := h.Billing.Checkout(c.Request.Context(), inv.ID, req.PaymentMethod)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h Handlers) PurchasePackage(c *gin.Context) {
	r, ok := callerRole(c)
	if !ok {
		return
	}
	var req billing.PackagePurchase
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if r.Kind == rbac.KindCenter {
		if req.CustomerID != "" && req.CustomerID != r.PartyID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		req.CustomerID = r.PartyID
	}

	res, err := h.Billing.PurchasePackage(c.Request.Context(), actor(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusCreated
	if !res.Created {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"invoice": res.Invoice, "mirror": res.Mirror, "created": res.Created})
}
