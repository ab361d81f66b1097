package payment

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"settlement-platform/internal/pricing"
)

const SignatureHeader = "X-Payment-Signature"

type CallbackStatus string

const (
	CallbackSucceeded CallbackStatus = "succeeded"
	CallbackFailed    CallbackStatus = "failed"
)

// Callback is the gateway's asynchronous payment result.
type Callback struct {
	InvoiceID string                `json:"invoice_id"`
	Status    CallbackStatus        `json:"status"`
	Reference string                `json:"reference"`
	Method    pricing.PaymentMethod `json:"method,omitempty"`
	Reason    string                `json:"reason,omitempty"`
}

var (
	ErrInvalidCallback  = errors.New("payment: invalid callback")
	ErrInvalidSignature = errors.New("payment: invalid signature")
)

const maxCallbackBytes = 64 << 10

// ParseCallback reads and authenticates a callback request. The signature
// header must carry the HMAC of the raw body.
func ParseCallback(r *http.Request, secret string) (Callback, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBytes))
	if err != nil {
		return Callback{}, err
	}
	if !Verify(secret, string(body), strings.TrimSpace(r.Header.Get(SignatureHeader))) {
		return Callback{}, ErrInvalidSignature
	}
	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return Callback{}, ErrInvalidCallback
	}
	if err := cb.Validate(); err != nil {
		return Callback{}, err
	}
	return cb, nil
}

func (cb Callback) Validate() error {
	if strings.TrimSpace(cb.InvoiceID) == "" {
		return ErrInvalidCallback
	}
	switch cb.Status {
	case CallbackSucceeded:
		if strings.TrimSpace(cb.Reference) == "" {
			return ErrInvalidCallback
		}
	case CallbackFailed:
	default:
		return ErrInvalidCallback
	}
	if cb.Method != "" && !cb.Method.Valid() {
		return ErrInvalidCallback
	}
	return nil
}
