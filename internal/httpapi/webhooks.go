package httpapi

import (
	"net/http"

	"settlement-platform/internal/payment"
	"settlement-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// PaymentCallback applies a signed gateway result to its invoice.
// Repeated callbacks for a paid invoice answer 200 so the gateway stops retrying.
func (h Handlers) PaymentCallback(c *gin.Context) {
	if h.WebhookSecret == "" {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "payment webhook not configured"})
		return
	}
	cb, err := payment.ParseCallback(c.Request, h.WebhookSecret)
	if err != nil {
		logger.FromGin(c).Warn("payment callback rejected", "err", err)
		writeError(c, err)
		return
	}
	inv, err := h.Billing.HandlePaymentCallback(c.Request.Context(), cb)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice_id": inv.ID, "status": inv.Status})
}
