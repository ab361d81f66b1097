package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"settlement-platform/internal/audit"
	"settlement-platform/internal/auth"
	"settlement-platform/internal/billing"
	"settlement-platform/internal/config"
	"settlement-platform/internal/fulfillment"
	"settlement-platform/internal/invoice"
	"settlement-platform/internal/payment"
	"settlement-platform/internal/reporting"
	"settlement-platform/internal/store/memory"

	"github.com/gin-gonic/gin"
)

const webhookSecret = "whsec"

type harness struct {
	t      *testing.T
	r      *gin.Engine
	tokens *auth.Manager
	svc    *billing.Service
	now    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Hour, MaxTokenTTL: 24 * time.Hour})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	h := &harness{t: t, tokens: m, now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}

	st := memory.New()
	gw := payment.HostedGateway{BaseURL: "https://pay.test", Secret: webhookSecret}
	h.svc = billing.NewService(st, nil, gw, billing.Options{}).WithClock(func() time.Time { return h.now })
	if _, _, err := h.svc.SeedDefaultPricing(context.Background(), audit.Actor{ID: "seed"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	h.r = gin.New()
	Register(h.r, Handlers{
		Billing:       h.svc,
		Reports:       reporting.NewService(reporting.NewStoreRepository(st), "TRY"),
		WebhookSecret: webhookSecret,
	}, auth.RequireAccessToken(m))
	return h
}

func (h *harness) token(role, party string) string {
	h.t.Helper()
	tok, err := h.tokens.IssueAccess(time.Now(), "user-"+role, party, role, time.Hour)
	if err != nil {
		h.t.Fatalf("token: %v", err)
	}
	return tok
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	return w
}

// completeUnit invoices one physical unit for cust through the admin event route.
func (h *harness) completeUnit(unitID, cust, prod string) invoice.Invoice {
	h.t.Helper()
	ev := fulfillment.Event{
		UnitID:         unitID,
		CustomerID:     cust,
		ProducerID:     prod,
		IsPhysical:     true,
		CreatedAt:      h.now,
		TerminalStatus: fulfillment.StatusCompleted,
	}
	h.now = h.now.Add(time.Minute)
	w := h.do(http.MethodPost, "/v1/admin/events/fulfillment", h.token("admin", ""), ev)
	if w.Code != http.StatusOK {
		h.t.Fatalf("event: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out outcomeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		h.t.Fatalf("decode outcome: %v", err)
	}
	if out.Skipped || out.Invoice == nil {
		h.t.Fatalf("expected an invoice, got %+v", out)
	}
	return *out.Invoice
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	if w := h.do(http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestV1RequiresToken(t *testing.T) {
	h := newHarness(t)
	if w := h.do(http.MethodGet, "/v1/invoices", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestInvoiceVisibility(t *testing.T) {
	h := newHarness(t)
	inv := h.completeUnit("u1", "cust-1", "prod-1")

	w := h.do(http.MethodGet, "/v1/invoices/"+inv.ID, h.token("center", "cust-1"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("owner: expected 200, got %d", w.Code)
	}
	w = h.do(http.MethodGet, "/v1/invoices/"+inv.ID, h.token("center", "cust-2"), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("other center: expected 404, got %d", w.Code)
	}
	w = h.do(http.MethodGet, "/v1/invoices/"+inv.ID, h.token("producer", "prod-1"), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("producer on customer invoice: expected 404, got %d", w.Code)
	}

	var list struct {
		Invoices []invoice.Invoice `json:"invoices"`
	}
	w = h.do(http.MethodGet, "/v1/invoices", h.token("producer", "prod-1"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("producer list: expected 200, got %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Invoices) != 1 || list.Invoices[0].Type != invoice.TypeProducer || list.Invoices[0].CounterpartID != inv.ID {
		t.Fatalf("expected the producer mirror only, got %+v", list.Invoices)
	}

	w = h.do(http.MethodGet, "/v1/invoices?type=producer", h.token("center", "cust-1"), nil)
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Invoices) != 0 {
		t.Fatalf("center must not list producer invoices, got %d", len(list.Invoices))
	}
}

func TestAdminRoutesRejectCenters(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodPost, "/v1/admin/sweep", h.token("center", "cust-1"), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	w = h.do(http.MethodPost, "/v1/admin/sweep", h.token("admin", ""), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPackagePurchaseScopedToCaller(t *testing.T) {
	h := newHarness(t)
	req := map[string]any{
		"customer_id":     "cust-2",
		"producer_id":     "prod-1",
		"package_plan_id": "pkg-10",
		"price":           "3990",
		"purchase_ref":    "order-1",
	}
	if w := h.do(http.MethodPost, "/v1/packages/purchase", h.token("center", "cust-1"), req); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another customer, got %d", w.Code)
	}
	if w := h.do(http.MethodPost, "/v1/packages/purchase", h.token("producer", "prod-1"), req); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for producer, got %d", w.Code)
	}
	// Unknown plan surfaces as 404.
	if w := h.do(http.MethodPost, "/v1/packages/purchase", h.token("admin", ""), req); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown plan, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCheckoutAndPaymentCallback(t *testing.T) {
	h := newHarness(t)
	inv := h.completeUnit("u1", "cust-1", "prod-1")

	w := h.do(http.MethodPost, "/v1/invoices/"+inv.ID+"/checkout", h.token("center", "cust-1"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("checkout: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var sess payment.Session
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil || sess.CheckoutURL == "" {
		t.Fatalf("expected checkout url, got %+v (%v)", sess, err)
	}

	body, _ := json.Marshal(payment.Callback{InvoiceID: inv.ID, Status: payment.CallbackSucceeded, Reference: sess.Reference})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	req.Header.Set(payment.SignatureHeader, "forged")
	rec := httptest.NewRecorder()
	h.r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged callback: expected 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	req.Header.Set(payment.SignatureHeader, payment.Sign(webhookSecret, string(body)))
	rec = httptest.NewRecorder()
	h.r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("callback: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	got, err := h.svc.GetInvoice(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != invoice.StatusPaid {
		t.Fatalf("expected paid, got %s", got.Status)
	}

	w = h.do(http.MethodPost, "/v1/invoices/"+inv.ID+"/checkout", h.token("center", "cust-1"), nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("checkout of paid invoice: expected 409, got %d", w.Code)
	}
}

func TestCancelRequiresReason(t *testing.T) {
	h := newHarness(t)
	inv := h.completeUnit("u1", "cust-1", "prod-1")

	w := h.do(http.MethodPost, "/v1/admin/invoices/"+inv.ID+"/cancel", h.token("admin", ""), map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	w = h.do(http.MethodPost, "/v1/admin/invoices/"+inv.ID+"/cancel", h.token("admin", ""), map[string]string{"reason": "duplicate"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestFinancialReport(t *testing.T) {
	h := newHarness(t)
	h.completeUnit("u1", "cust-1", "prod-1")

	w := h.do(http.MethodGet, "/v1/admin/reports/financial", h.token("admin", ""), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing range: expected 400, got %d", w.Code)
	}
	w = h.do(http.MethodGet, "/v1/admin/reports/financial?from=2026-03-01&to=2026-04-01", h.token("admin", ""), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var sum reporting.FinancialSummary
	if err := json.Unmarshal(w.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.Customers.Invoices != 1 || sum.Producers.Invoices != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestCreatePricingRejectsInvalid(t *testing.T) {
	h := newHarness(t)
	body := map[string]any{"name": "bad", "physical_unit_price": "-1", "tax_rate": "20"}
	w := h.do(http.MethodPost, "/v1/admin/pricing", h.token("admin", ""), body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestClosePeriodBillsLateCompletion(t *testing.T) {
	h := newHarness(t)
	admin := h.token("admin", "")

	ev := fulfillment.Event{
		UnitID:         "unit-feb",
		CustomerID:     "cust-1",
		ProducerID:     "prod-1",
		IsPhysical:     true,
		CreatedAt:      time.Date(2026, 2, 27, 12, 0, 0, 0, time.UTC),
		TerminalStatus: fulfillment.StatusCompleted,
	}
	w := h.do(http.MethodPost, "/v1/admin/events/fulfillment", admin, ev)
	if w.Code != http.StatusOK {
		t.Fatalf("event: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out outcomeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if out.Invoice != nil {
		t.Fatalf("expected a February unit to stay out of the March window")
	}

	if w := h.do(http.MethodPost, "/v1/admin/periods/close", admin, map[string]any{"year": 2026, "month": 3}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for the open month, got %d: %s", w.Code, w.Body.String())
	}

	w = h.do(http.MethodPost, "/v1/admin/periods/close", admin, map[string]any{"year": 2026, "month": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var rep billing.CloseReport
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(rep.Invoices) != 1 || rep.Invoices[0].PhysicalCount != 1 {
		t.Fatalf("expected one invoice for the February unit, got %+v", rep.Invoices)
	}
	if !rep.Invoices[0].PeriodStart.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected February period, got %s", rep.Invoices[0].PeriodStart)
	}
}
