package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/augur/pkg/observability"
)

// ConsumerRegistry maps routing keys to consumers and dispatches events.
type ConsumerRegistry struct {
	consumers map[string][]EventConsumer
	metrics   observability.Metrics
	mu        sync.RWMutex
	logger    *slog.Logger
}

// NewConsumerRegistry creates a new consumer registry.
func NewConsumerRegistry(metrics observability.Metrics, logger *slog.Logger) *ConsumerRegistry {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsumerRegistry{
		consumers: make(map[string][]EventConsumer),
		metrics:   metrics,
		logger:    logger,
	}
}

// Register adds a consumer for its declared event types.
func (r *ConsumerRegistry) Register(consumer EventConsumer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range consumer.EventTypes() {
		r.consumers[key] = append(r.consumers[key], consumer)
	}
}

// Consumers returns the consumers registered for a routing key.
func (r *ConsumerRegistry) Consumers(routingKey string) []EventConsumer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.consumers[routingKey]
}

// Dispatch hands the event to every consumer of its routing key. All
// consumers run even if one fails; their errors are joined.
func (r *ConsumerRegistry) Dispatch(ctx context.Context, event *Envelope) error {
	consumers := r.Consumers(event.RoutingKey)
	if len(consumers) == 0 {
		r.logger.DebugContext(ctx, "no consumers for event type", "routing_key", event.RoutingKey)
		return nil
	}

	var errs []error
	for _, consumer := range consumers {
		if err := consumer.Handle(ctx, event); err != nil {
			r.logger.ErrorContext(ctx, "consumer failed to handle event",
				"routing_key", event.RoutingKey,
				"event_id", event.EventID,
				"error", err,
			)
			errs = append(errs, err)
			continue
		}
		r.metrics.Counter(observability.MetricEventsConsumed, 1, observability.T("routing_key", event.RoutingKey))
	}

	return errors.Join(errs...)
}
