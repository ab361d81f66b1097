package billing

import (
	"context"
	"encoding/json"
	"errors"

	"settlement-platform/internal/fulfillment"
	"settlement-platform/pkg/logger"
	"settlement-platform/pkg/rabbitmq"
)

// RoutingKeyFulfillmentStatus carries fulfillment.Event payloads.
const RoutingKeyFulfillmentStatus = "fulfillment.status"

// EventHandler consumes fulfillment status messages. Malformed or invalid
// events are acknowledged and dropped; other failures re-queue the message.
func (s *Service) EventHandler() rabbitmq.Handler {
	return func(ctx context.Context, body []byte) bool {
		log := logger.From(ctx)

		var ev fulfillment.Event
		if err := json.Unmarshal(body, &ev); err != nil {
			log.Warn("dropping undecodable fulfillment event", "err", err)
			return true
		}
		out, err := s.HandleFulfillmentEvent(ctx, ev)
		switch {
		case err == nil:
		case errors.Is(err, fulfillment.ErrInvalidEvent), errors.Is(err, ErrInvalidArgument):
			log.Warn("dropping invalid fulfillment event", "unit_id", ev.UnitID, "err", err)
			return true
		default:
			log.Error("fulfillment event failed", "unit_id", ev.UnitID, "customer_id", ev.CustomerID, "err", err)
			return false
		}
		if out.Invoice != nil {
			log.Info("invoice issued from event", "unit_id", ev.UnitID, "invoice_number", out.Invoice.Number)
		}
		return true
	}
}
