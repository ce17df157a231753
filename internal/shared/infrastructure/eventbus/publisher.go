package eventbus

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/augur/internal/shared/domain"
	"github.com/felixgeelhaar/augur/pkg/observability"
)

// Publisher defines the interface for publishing events to a message broker.
type Publisher interface {
	// Publish sends a message to the event bus.
	Publish(ctx context.Context, routingKey string, payload []byte) error

	// Close closes the publisher connection.
	Close() error
}

// EventPublisher emits domain events through a Publisher. Publishing is
// best effort: ledger writes have already happened when an event is
// emitted, so failures are logged and counted rather than returned.
type EventPublisher struct {
	publisher Publisher
	metrics   observability.Metrics
	logger    *slog.Logger
}

// NewEventPublisher creates an EventPublisher. A nil publisher drops events.
func NewEventPublisher(publisher Publisher, metrics observability.Metrics, logger *slog.Logger) *EventPublisher {
	if publisher == nil {
		publisher = NewNoopPublisher(logger)
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPublisher{publisher: publisher, metrics: metrics, logger: logger}
}

// Emit publishes each event in order.
func (p *EventPublisher) Emit(ctx context.Context, events ...domain.DomainEvent) {
	if p == nil {
		return
	}
	for _, event := range events {
		payload, err := Encode(ctx, event)
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to encode event", "routing_key", event.RoutingKey(), "error", err)
			continue
		}
		if err := p.publisher.Publish(ctx, event.RoutingKey(), payload); err != nil {
			p.logger.WarnContext(ctx, "failed to publish event",
				"routing_key", event.RoutingKey(),
				"scope", event.Scope().Key(),
				"error", err,
			)
			continue
		}
		p.metrics.Counter(observability.MetricEventsPublished, 1, observability.T("routing_key", event.RoutingKey()))
	}
}

// NoopPublisher is a no-op publisher for testing/development.
type NoopPublisher struct {
	logger *slog.Logger
}

// NewNoopPublisher creates a publisher that does nothing.
func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopPublisher{logger: logger}
}

// Publish logs the message but doesn't actually publish.
func (p *NoopPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.logger.DebugContext(ctx, "noop publish", "routing_key", routingKey, "size", len(payload))
	return nil
}

// Close is a no-op.
func (p *NoopPublisher) Close() error {
	return nil
}
