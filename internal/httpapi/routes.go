package httpapi

import (
	"settlement-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register wires every route. authMW verifies bearer tokens for /v1.
// Keep this free of business logic.
func Register(r gin.IRouter, h Handlers, authMW gin.HandlerFunc) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.POST("/webhooks/payments", h.PaymentCallback)

	v1 := r.Group("/v1")
	v1.Use(authMW, rbac.ResolveRole())
	{
		v1.GET("/pricing/active", h.GetActivePricing)

		v1.GET("/invoices", h.ListInvoices)
		v1.GET("/invoices/:invoice_id", h.GetInvoice)
		v1.POST("/invoices/:invoice_id/checkout", rbac.RequireAnyRole(rbac.KindCenter), h.Checkout)

		v1.POST("/packages/purchase", rbac.RequireAnyRole(rbac.KindCenter), h.PurchasePackage)

		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.KindAdmin))
		{
			admin.POST("/pricing", h.CreatePricing)
			admin.POST("/pricing/:config_id/activate", h.ActivatePricing)
			admin.POST("/events/fulfillment", h.IngestFulfillmentEvent)
			admin.POST("/invoices/:invoice_id/cancel", h.CancelInvoice)
			admin.POST("/ledger/:entry_id/reverse", h.ReverseEntry)
			admin.GET("/reports/financial", h.FinancialReport)
			admin.POST("/sweep", h.TriggerSweep)
			admin.POST("/periods/close", h.ClosePeriod)
		}
	}
}
