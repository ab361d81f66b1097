package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"

	"settlement-platform/internal/pricing"

	"github.com/shopspring/decimal"
)

// Gateway is the provider-agnostic checkout boundary.
//
// Rules:
// - No provider SDK calls outside gateway adapters.
// - The gateway never decides invoice state; results arrive through the callback.
type Gateway interface {
	Name() string
	Checkout(ctx context.Context, h Handoff) (Session, error)
}

// Handoff is what billing passes to the gateway for one payable invoice.
type Handoff struct {
	InvoiceID     string                `json:"invoice_id"`
	InvoiceNumber string                `json:"invoice_number"`
	CustomerID    string                `json:"customer_id"`
	Amount        decimal.Decimal       `json:"amount"`
	Currency      string                `json:"currency"`
	Method        pricing.PaymentMethod `json:"method"`
}

// Session is where the payer completes the payment.
type Session struct {
	Provider    string `json:"provider"`
	Reference   string `json:"reference"`
	CheckoutURL string `json:"checkout_url"`
}

var ErrInvalidHandoff = errors.New("payment: invalid handoff")

// HostedGateway redirects the payer to a hosted payment page. The query string
// is signed so the page can trust the amount.
type HostedGateway struct {
	BaseURL string
	Secret  string
}

func (g HostedGateway) Name() string { return "hosted" }

func (g HostedGateway) Checkout(ctx context.Context, h Handoff) (Session, error) {
	if h.InvoiceID == "" || h.Currency == "" || !h.Amount.IsPositive() {
		return Session{}, ErrInvalidHandoff
	}
	if strings.TrimSpace(g.BaseURL) == "" {
		return Session{}, errors.New("payment: gateway base url not configured")
	}
	ref := "chk_" + h.InvoiceID

	q := url.Values{}
	q.Set("invoice", h.InvoiceNumber)
	q.Set("amount", h.Amount.StringFixed(2))
	q.Set("currency", h.Currency)
	q.Set("reference", ref)
	if h.Method != "" {
		q.Set("method", string(h.Method))
	}
	q.Set("signature", Sign(g.Secret, q.Encode()))

	return Session{
		Provider:    g.Name(),
		Reference:   ref,
		CheckoutURL: strings.TrimRight(g.BaseURL, "/") + "/checkout?" + q.Encode(),
	}, nil
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a hex signature in constant time.
func Verify(secret, payload, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hmac.Equal(mac.Sum(nil), want)
}
