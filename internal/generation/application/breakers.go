package application

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/augur/internal/generation/domain"
	"github.com/felixgeelhaar/augur/pkg/observability"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures per-backend circuit breakers.
type BreakerConfig struct {
	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32
	// Interval is the cyclic period of the closed state.
	Interval time.Duration
	// Timeout is how long a breaker stays open.
	Timeout time.Duration
	// FailureThreshold trips the breaker after that many consecutive failures.
	FailureThreshold uint32
}

// DefaultBreakerConfig returns the breaker settings used when enabled.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 6,
	}
}

// Breakers holds one circuit breaker per backend model, shared by every
// pipeline that uses the model.
type Breakers struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[string]
	config   BreakerConfig
	metrics  observability.Metrics
	logger   *slog.Logger
}

// NewBreakers creates an empty breaker set.
func NewBreakers(config BreakerConfig, metrics observability.Metrics, logger *slog.Logger) *Breakers {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Breakers{
		breakers: make(map[string]*gobreaker.CircuitBreaker[string]),
		config:   config,
		metrics:  metrics,
		logger:   logger,
	}
}

func (b *Breakers) get(model string) *gobreaker.CircuitBreaker[string] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[model]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        model,
		MaxRequests: b.config.MaxRequests,
		Interval:    b.config.Interval,
		Timeout:     b.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Info("circuit breaker state changed",
				"backend", name,
				"from", from.String(),
				"to", to.String(),
			)
			b.metrics.Gauge("augur.generation.breaker_state", float64(to), observability.T("backend", name))
		},
	})
	b.breakers[model] = cb
	return cb
}

// Execute runs fn through the model's breaker. Open or saturated breakers
// fail with domain.ErrCircuitOpen without calling fn.
func (b *Breakers) Execute(model string, fn func() (string, error)) (string, error) {
	text, err := b.get(model).Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", domain.ErrCircuitOpen
	}
	return text, err
}

// State returns the breaker state name of a model.
func (b *Breakers) State(model string) string {
	return b.get(model).State().String()
}
