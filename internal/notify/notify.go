// Package notify emits invoice notifications after the billing transaction
// has committed. Delivery is best-effort: failures are logged and never roll
// anything back.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"settlement-platform/internal/invoice"
	"settlement-platform/pkg/logger"
	"settlement-platform/pkg/rabbitmq"
)

const (
	KeyInvoiceCreated       = "invoice.created"
	KeyInvoicePaid          = "invoice.paid"
	KeyInvoicePaymentFailed = "invoice.payment_failed"
)

// Notification is the outbound payload.
type Notification struct {
	RecipientID       string `json:"recipientId"`
	Title             string `json:"title"`
	Message           string `json:"message"`
	RelatedInvoiceURL string `json:"relatedInvoiceUrl"`
}

// Message is a notification with its routing key.
type Message struct {
	Key          string
	Notification Notification
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// AMQPSender publishes to a topic exchange.
type AMQPSender struct {
	pub      rabbitmq.Publisher
	exchange string
}

func NewAMQPSender(pub rabbitmq.Publisher, exchange string) *AMQPSender {
	return &AMQPSender{pub: pub, exchange: exchange}
}

func (s *AMQPSender) Send(ctx context.Context, m Message) error {
	return s.pub.Publish(ctx, s.exchange, m.Key, m.Notification)
}

// Recorder keeps sent messages in memory. Useful for tests.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *Recorder) Send(ctx context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// Dispatcher sends messages with a bounded timeout per batch.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	baseURL string
}

func NewDispatcher(sender Sender, timeout time.Duration, baseURL string) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{sender: sender, timeout: timeout, baseURL: strings.TrimRight(baseURL, "/")}
}

// Dispatch sends msgs and logs failures. It never returns an error.
func (d *Dispatcher) Dispatch(ctx context.Context, msgs ...Message) {
	if d == nil || d.sender == nil || len(msgs) == 0 {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	l := logger.From(ctx)
	for _, m := range msgs {
		if err := d.sender.Send(sendCtx, m); err != nil {
			l.Warn("notification failed", slog.String("key", m.Key), slog.String("recipient_id", m.Notification.RecipientID), slog.Any("err", err))
		}
	}
}

func (d *Dispatcher) invoiceURL(inv invoice.Invoice) string {
	return fmt.Sprintf("%s/v1/invoices/%s", d.baseURL, inv.ID)
}

func recipient(inv invoice.Invoice) string {
	if inv.Type == invoice.TypeProducer {
		return inv.ProducerID
	}
	return inv.CustomerID
}

// InvoiceCreated builds the message sent when an invoice is issued.
func (d *Dispatcher) InvoiceCreated(inv invoice.Invoice) Message {
	return Message{Key: KeyInvoiceCreated, Notification: Notification{
		RecipientID:       recipient(inv),
		Title:             "New invoice " + inv.Number,
		Message:           fmt.Sprintf("Invoice %s for %s %s has been issued. Due %s.", inv.Number, inv.Gross.StringFixed(2), inv.Currency, inv.DueAt.Format("2006-01-02")),
		RelatedInvoiceURL: d.invoiceURL(inv),
	}}
}

func (d *Dispatcher) InvoicePaid(inv invoice.Invoice) Message {
	return Message{Key: KeyInvoicePaid, Notification: Notification{
		RecipientID:       recipient(inv),
		Title:             "Invoice " + inv.Number + " paid",
		Message:           fmt.Sprintf("Payment of %s %s received for invoice %s.", inv.Gross.StringFixed(2), inv.Currency, inv.Number),
		RelatedInvoiceURL: d.invoiceURL(inv),
	}}
}

func (d *Dispatcher) InvoicePaymentFailed(inv invoice.Invoice) Message {
	return Message{Key: KeyInvoicePaymentFailed, Notification: Notification{
		RecipientID:       recipient(inv),
		Title:             "Payment failed for " + inv.Number,
		Message:           fmt.Sprintf("Payment for invoice %s failed: %s. The invoice is still open.", inv.Number, inv.LastPaymentError),
		RelatedInvoiceURL: d.invoiceURL(inv),
	}}
}
