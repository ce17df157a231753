package application

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/felixgeelhaar/augur/internal/entitlement/domain"
	"github.com/felixgeelhaar/augur/internal/shared/infrastructure/eventbus"
)

// PaymentConsumer applies payment confirmations delivered on the bus.
type PaymentConsumer struct {
	service *Service
}

var _ eventbus.EventConsumer = (*PaymentConsumer)(nil)

// NewPaymentConsumer creates a consumer for billing.payment.approved.
func NewPaymentConsumer(service *Service) *PaymentConsumer {
	return &PaymentConsumer{service: service}
}

func (c *PaymentConsumer) EventTypes() []string {
	return []string{domain.RoutingKeyPaymentApproved}
}

// Handle decodes the payment and grants premium. The envelope's scope
// fills in a payload that omits module or session.
func (c *PaymentConsumer) Handle(ctx context.Context, event *eventbus.Envelope) error {
	var payment domain.PaymentApproved
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payment); err != nil {
			c.service.logger.ErrorContext(ctx, "dropping undecodable payment event", "event_id", event.EventID, "error", err)
			return nil
		}
	}
	if payment.Module == "" {
		payment.Module = event.Module
	}
	if payment.SessionID == "" {
		payment.SessionID = event.SessionID
	}
	if payment.PaymentID == "" {
		payment.PaymentID = event.EventID.String()
	}

	_, err := c.service.ApplyPayment(ctx, payment)
	if errors.Is(err, ErrInvalidPayment) {
		// Redelivery cannot fix a malformed event.
		c.service.logger.ErrorContext(ctx, "dropping invalid payment event", "event_id", event.EventID, "error", err)
		return nil
	}
	return err
}
