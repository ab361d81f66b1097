package httpapi

import (
	"errors"
	"net/http"

	"settlement-platform/internal/audit"
	"settlement-platform/internal/auth"
	"settlement-platform/internal/billing"
	"settlement-platform/internal/fulfillment"
	"settlement-platform/internal/invoice"
	"settlement-platform/internal/ledger"
	"settlement-platform/internal/payment"
	"settlement-platform/internal/pricing"
	"settlement-platform/internal/rbac"
	"settlement-platform/internal/reporting"
	"settlement-platform/internal/subscription"
	"settlement-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Billing *billing.Service
	Reports *reporting.Service
	// WebhookSecret authenticates payment gateway callbacks.
	WebhookSecret string
}

// actor builds the audit actor from the verified identity.
func actor(c *gin.Context) audit.Actor {
	ctx := c.Request.Context()
	uid, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)
	ip := auth.ClientIP(ctx)
	if ip == "" {
		ip = c.ClientIP()
	}
	return audit.Actor{ID: uid, Role: role, IP: ip}
}

func callerRole(c *gin.Context) (rbac.CustomerRole, bool) {
	r, ok := rbac.FromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
	}
	return r, ok
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// writeError maps domain errors to status codes. Unknown errors are logged and
// reported as 500 without detail.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, invoice.ErrNotFound),
		errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, pricing.ErrNotFound),
		errors.Is(err, subscription.ErrNotFound),
		errors.Is(err, subscription.ErrPlanNotFound):
		status = http.StatusNotFound
	case errors.Is(err, billing.ErrInvalidArgument),
		errors.Is(err, invoice.ErrInvalidArgument),
		errors.Is(err, ledger.ErrInvalidArgument),
		errors.Is(err, subscription.ErrInvalidArgument),
		errors.Is(err, pricing.ErrInvalidPricing),
		errors.Is(err, fulfillment.ErrInvalidEvent),
		errors.Is(err, reporting.ErrInvalidRequest),
		errors.Is(err, payment.ErrInvalidCallback):
		status = http.StatusBadRequest
	case errors.Is(err, payment.ErrInvalidSignature):
		status = http.StatusUnauthorized
	case errors.Is(err, invoice.ErrAlreadyPaid),
		errors.Is(err, invoice.ErrInvalidTransition),
		errors.Is(err, subscription.ErrCreditsConsumed),
		errors.Is(err, pricing.ErrConfigurationMissing):
		status = http.StatusConflict
	case errors.Is(err, billing.ErrGatewayUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "err", err)
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
