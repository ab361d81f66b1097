package main

import (
	"settlement-platform/internal/auth"
	"settlement-platform/internal/billing"
	"settlement-platform/internal/httpapi"
	"settlement-platform/internal/reporting"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	auth          *auth.Manager
	billing       *billing.Service
	reports       *reporting.Service
	webhookSecret string
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	h := httpapi.Handlers{
		Billing:       d.billing,
		Reports:       d.reports,
		WebhookSecret: d.webhookSecret,
	}
	httpapi.Register(r, h, auth.RequireAccessToken(d.auth))
}
