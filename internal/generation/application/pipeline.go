package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"

	"github.com/felixgeelhaar/augur/internal/generation/domain"
	"github.com/felixgeelhaar/augur/pkg/observability"
)

// Default retry settings.
const (
	DefaultRetryBudget  = 3
	DefaultAttemptDelay = 500 * time.Millisecond
	DefaultBackendDelay = time.Second
	DefaultCallTimeout  = 30 * time.Second
)

// Config describes one module's pipeline.
type Config struct {
	Backends     []domain.Backend
	RetryBudget  int
	AttemptDelay time.Duration
	BackendDelay time.Duration
	Thresholds   domain.Thresholds
	// CallTimeout bounds a single backend call. Zero leaves it to the
	// provider's transport.
	CallTimeout time.Duration
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithBreakers routes calls through per-backend circuit breakers.
func WithBreakers(b *Breakers) Option {
	return func(p *Pipeline) { p.breakers = b }
}

// WithSleeper replaces the delay implementation.
func WithSleeper(s Sleeper) Option {
	return func(p *Pipeline) { p.sleep = s }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// Pipeline walks an ordered backend list, retrying each backend up to its
// budget, and returns the first response long enough for the policy.
// Backends are tried strictly in order; nothing runs in parallel.
type Pipeline struct {
	module   string
	provider domain.Provider
	config   Config
	breakers *Breakers
	sleep    Sleeper
	metrics  observability.Metrics
	logger   *slog.Logger
}

// NewPipeline creates a pipeline for a module.
func NewPipeline(module string, provider domain.Provider, config Config, opts ...Option) *Pipeline {
	if config.RetryBudget <= 0 {
		config.RetryBudget = DefaultRetryBudget
	}
	p := &Pipeline{
		module:   module,
		provider: provider,
		config:   config,
		sleep:    SleepContext,
		metrics:  observability.NoopMetrics{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate returns the first accepted response. When every attempt fails
// it returns a *domain.ExhaustedError after exactly
// len(Backends) x RetryBudget attempts, unless ctx ends first.
func (p *Pipeline) Generate(ctx context.Context, prompt domain.Prompt, policy domain.SizePolicy) (domain.Result, error) {
	if len(p.config.Backends) == 0 {
		return domain.Result{}, domain.ErrNoBackends
	}

	start := time.Now()
	attempts := 0
	var last error

	for bi, backend := range p.config.Backends {
		result, err := p.tryBackend(ctx, backend, prompt, policy, &attempts)
		if err == nil {
			p.metrics.Timing(observability.MetricGenerationDuration, time.Since(start), observability.T("module", p.module))
			return result, nil
		}
		last = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Result{}, ctxErr
		}
		if bi < len(p.config.Backends)-1 {
			if err := p.sleep(ctx, p.config.BackendDelay); err != nil {
				return domain.Result{}, err
			}
		}
	}

	p.metrics.Counter(observability.MetricGenerationExhausted, 1, observability.T("module", p.module))
	p.logger.ErrorContext(ctx, "all generation backends exhausted",
		observability.ModuleKey, p.module,
		"attempts", attempts,
		observability.ErrorKey, last,
	)
	return domain.Result{}, &domain.ExhaustedError{Attempts: attempts, Last: last}
}

// tryBackend spends one backend's retry budget with a constant delay
// between attempts. An open breaker ends the backend early.
func (p *Pipeline) tryBackend(ctx context.Context, backend domain.Backend, prompt domain.Prompt, policy domain.SizePolicy, attempts *int) (domain.Result, error) {
	req := domain.Request{Model: backend.Model, Prompt: prompt, Params: backend.ParamsFor(policy)}
	minLen := p.config.Thresholds.For(policy)
	n := 0
	var result domain.Result

	op := func() error {
		n++
		*attempts++
		text, err := p.call(ctx, req)
		if err == nil {
			text = strings.TrimSpace(text)
			if got := utf8.RuneCountInString(text); got < minLen {
				err = fmt.Errorf("%w: %d < %d runes", domain.ErrResponseTooShort, got, minLen)
				p.metrics.Counter(observability.MetricGenerationRejected, 1, p.tags(backend.Model)...)
			}
		}

		if err == nil {
			p.metrics.Counter(observability.MetricGenerationAttempts, 1, append(p.tags(backend.Model), observability.T("outcome", "accepted"))...)
			result = domain.Result{Text: text, Backend: backend.Model, Attempts: *attempts}
			return nil
		}

		p.metrics.Counter(observability.MetricGenerationAttempts, 1, append(p.tags(backend.Model), observability.T("outcome", "failed"))...)
		p.logger.WarnContext(ctx, "generation attempt failed",
			observability.ModuleKey, p.module,
			observability.BackendKey, backend.Model,
			"attempt", n,
			"policy", string(policy),
			observability.ErrorKey, err,
		)
		if errors.Is(err, domain.ErrCircuitOpen) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.config.AttemptDelay), uint64(p.config.RetryBudget-1)),
		ctx,
	)
	if err := backoff.RetryNotifyWithTimer(op, b, nil, &sleepTimer{ctx: ctx, sleep: p.sleep}); err != nil {
		return domain.Result{}, err
	}
	return result, nil
}

func (p *Pipeline) call(ctx context.Context, req domain.Request) (string, error) {
	callCtx := ctx
	if p.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.config.CallTimeout)
		defer cancel()
	}

	if p.breakers == nil {
		return p.provider.Generate(callCtx, req)
	}
	text, err := p.breakers.Execute(req.Model, func() (string, error) {
		return p.provider.Generate(callCtx, req)
	})
	if errors.Is(err, domain.ErrCircuitOpen) {
		return "", fmt.Errorf("%s: %w", req.Model, err)
	}
	return text, err
}

func (p *Pipeline) tags(model string) []observability.Tag {
	return []observability.Tag{observability.T("module", p.module), observability.T("backend", model)}
}

// sleepTimer drives backoff delays through the pipeline's Sleeper. Start
// blocks for the delay; a cancelled wait leaves C empty and backoff returns
// on ctx.Done.
type sleepTimer struct {
	ctx   context.Context
	sleep Sleeper
	c     chan time.Time
}

func (t *sleepTimer) Start(d time.Duration) {
	t.c = make(chan time.Time, 1)
	if err := t.sleep(t.ctx, d); err == nil {
		t.c <- time.Now()
	}
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time {
	return t.c
}

// WorstCase returns the longest a Generate call can run under this config
// when every attempt hangs until CallTimeout. It is zero when CallTimeout
// is unset, since the duration is then unbounded.
func (c Config) WorstCase() time.Duration {
	if c.CallTimeout <= 0 || len(c.Backends) == 0 {
		return 0
	}
	budget := c.RetryBudget
	if budget <= 0 {
		budget = DefaultRetryBudget
	}
	backends := time.Duration(len(c.Backends))
	calls := backends * time.Duration(budget) * c.CallTimeout
	retries := backends * time.Duration(budget-1) * c.AttemptDelay
	switches := (backends - 1) * c.BackendDelay
	return calls + retries + switches
}

// WorstCase returns the pipeline's Config.WorstCase.
func (p *Pipeline) WorstCase() time.Duration {
	return p.config.WorstCase()
}

// SleepContext waits for d, returning early with ctx's error.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
