package billing

import (
	"context"
	"fmt"

	"settlement-platform/internal/invoice"
	"settlement-platform/internal/notify"
	"settlement-platform/internal/payment"
	"settlement-platform/internal/pricing"
	"settlement-platform/internal/store"
	"settlement-platform/pkg/logger"
)

// Checkout hands a payable customer-side invoice to the payment gateway.
func (s *Service) Checkout(ctx context.Context, invoiceID string, method pricing.PaymentMethod) (payment.Session, error) {
	if s.gateway == nil {
		return payment.Session{}, ErrGatewayUnavailable
	}
	inv, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return payment.Session{}, err
	}
	if inv.Type == invoice.TypeProducer {
		return payment.Session{}, fmt.Errorf("%w: producer invoices are paid out by the platform", ErrInvalidArgument)
	}
	if inv.Status == invoice.StatusPaid {
		return payment.Session{}, invoice.ErrAlreadyPaid
	}
	if !inv.Status.Payable() {
		return payment.Session{}, invoice.ErrInvalidTransition
	}
	if method == "" {
		method = inv.PaymentMethod
	}
	return s.gateway.Checkout(ctx, payment.Handoff{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.Number,
		CustomerID:    inv.CustomerID,
		Amount:        inv.Gross,
		Currency:      inv.Currency,
		Method:        method,
	})
}

// HandlePaymentCallback applies a gateway result. Replaying a success with the
// same reference changes nothing and sends no notification.
func (s *Service) HandlePaymentCallback(ctx context.Context, cb payment.Callback) (invoice.Invoice, error) {
	if err := cb.Validate(); err != nil {
		return invoice.Invoice{}, err
	}
	var (
		inv     invoice.Invoice
		changed bool
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		b := s.bind(tx)
		var err error
		switch cb.Status {
		case payment.CallbackSucceeded:
			inv, changed, err = b.invoices.MarkAsPaid(ctx, cb.InvoiceID, cb.Method, cb.Reference)
		default:
			inv, err = b.invoices.MarkPaymentFailed(ctx, cb.InvoiceID, cb.Reason)
			changed = err == nil
		}
		return err
	})
	if err != nil {
		return invoice.Invoice{}, err
	}

	log := logger.From(ctx).With("invoice_number", inv.Number, "status", string(cb.Status))
	if !changed {
		log.Debug("payment callback replayed")
		return inv, nil
	}
	log.Info("payment callback applied")
	s.notify(ctx, func(d *notify.Dispatcher) []notify.Message {
		if cb.Status == payment.CallbackSucceeded {
			return []notify.Message{d.InvoicePaid(inv)}
		}
		return []notify.Message{d.InvoicePaymentFailed(inv)}
	})
	return inv, nil
}
