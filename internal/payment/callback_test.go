package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func signedRequest(secret, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set(SignatureHeader, Sign(secret, body))
	return r
}

func TestParseCallback(t *testing.T) {
	body := `{"invoice_id":"inv-1","status":"succeeded","reference":"pay_123","method":"card"}`
	cb, err := ParseCallback(signedRequest("s3cret", body), "s3cret")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cb.InvoiceID != "inv-1" || cb.Status != CallbackSucceeded || cb.Reference != "pay_123" {
		t.Fatalf("unexpected callback: %+v", cb)
	}
}

func TestParseCallback_RejectsBadSignature(t *testing.T) {
	body := `{"invoice_id":"inv-1","status":"succeeded","reference":"pay_123"}`
	r := signedRequest("other", body)
	if _, err := ParseCallback(r, "s3cret"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestParseCallback_SuccessNeedsReference(t *testing.T) {
	body := `{"invoice_id":"inv-1","status":"succeeded"}`
	if _, err := ParseCallback(signedRequest("k", body), "k"); !errors.Is(err, ErrInvalidCallback) {
		t.Fatalf("expected ErrInvalidCallback, got %v", err)
	}
}

func TestHostedGateway_Checkout(t *testing.T) {
	g := HostedGateway{BaseURL: "https://pay.example.com/", Secret: "k"}
	s, err := g.Checkout(context.Background(), Handoff{InvoiceID: "i1", InvoiceNumber: "CUS-202603-00001", Amount: decimal.NewFromInt(450), Currency: "TRY"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	u, err := url.Parse(s.CheckoutURL)
	if err != nil {
		t.Fatalf("bad url: %v", err)
	}
	q := u.Query()
	sig := q.Get("signature")
	q.Del("signature")
	if !Verify("k", q.Encode(), sig) {
		t.Fatalf("expected signed query")
	}
	if q.Get("amount") != "450.00" {
		t.Fatalf("unexpected amount %q", q.Get("amount"))
	}

	if _, err := g.Checkout(context.Background(), Handoff{InvoiceID: "i1", Currency: "TRY"}); !errors.Is(err, ErrInvalidHandoff) {
		t.Fatalf("expected ErrInvalidHandoff for zero amount, got %v", err)
	}
}
