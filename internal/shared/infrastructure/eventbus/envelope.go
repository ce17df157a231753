package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/augur/internal/shared/domain"
	"github.com/felixgeelhaar/augur/pkg/observability"
	"github.com/google/uuid"
)

// Envelope is the wire format of every message on the bus.
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	RoutingKey    string          `json:"routing_key"`
	Module        string          `json:"module"`
	SessionID     string          `json:"session_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Scope returns the module/session pair the envelope concerns.
func (e *Envelope) Scope() domain.Scope {
	return domain.Scope{Module: e.Module, Session: e.SessionID}
}

// EventConsumer handles specific event types.
type EventConsumer interface {
	// EventTypes returns the routing keys this consumer handles,
	// e.g. ["billing.payment.approved"].
	EventTypes() []string

	// Handle processes the event.
	Handle(ctx context.Context, event *Envelope) error
}

// Encode wraps a domain event in an envelope. The event itself becomes the
// payload, so embedders should expose their data as exported fields.
func Encode(ctx context.Context, event domain.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event.RoutingKey(), err)
	}
	return NewEnvelope(ctx, event.EventID(), event.RoutingKey(), event.Scope(), event.OccurredAt(), payload)
}

// NewEnvelope builds and serializes an envelope from raw parts. Used for
// events that originate outside the domain, such as processor webhooks.
func NewEnvelope(ctx context.Context, id uuid.UUID, routingKey string, scope domain.Scope, at time.Time, payload []byte) ([]byte, error) {
	env := Envelope{
		EventID:       id,
		RoutingKey:    routingKey,
		Module:        scope.Module,
		SessionID:     scope.Session,
		OccurredAt:    at,
		CorrelationID: observability.CorrelationIDFromContext(ctx),
		Payload:       payload,
	}
	return json.Marshal(env)
}
