package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/augur/internal/generation/domain"
	"github.com/felixgeelhaar/augur/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockProvider is a mock implementation of domain.Provider.
type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Generate(ctx context.Context, req domain.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// models lists the backend of every recorded call, in order.
func (m *mockProvider) models() []string {
	var out []string
	for _, c := range m.Calls {
		if c.Method == "Generate" {
			out = append(out, c.Arguments.Get(1).(domain.Request).Model)
		}
	}
	return out
}

func forModel(model string) any {
	return mock.MatchedBy(func(req domain.Request) bool { return req.Model == model })
}

type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func testConfig(models ...string) Config {
	backends := make([]domain.Backend, len(models))
	for i, m := range models {
		backends[i] = domain.Backend{
			Model:  m,
			Full:   domain.Params{MaxOutputTokens: 1024},
			Teaser: domain.Params{MaxOutputTokens: 256},
		}
	}
	return Config{
		Backends:     backends,
		RetryBudget:  3,
		AttemptDelay: 500 * time.Millisecond,
		BackendDelay: time.Second,
		Thresholds:   domain.Thresholds{Full: 20, Teaser: 10},
	}
}

var longText = strings.Repeat("The stars lean toward patience. ", 3)

func TestPipeline_AllBackendsFail(t *testing.T) {
	provider := new(mockProvider)
	provider.On("Generate", mock.Anything, mock.Anything).Return("", domain.ErrBackendUnavailable)
	sleeper := &recordingSleeper{}
	metrics := observability.NewInMemoryMetrics()

	p := NewPipeline("dreams", provider, testConfig("m1", "m2", "m3", "m4"),
		WithSleeper(sleeper.sleep),
		WithMetrics(metrics),
		WithLogger(observability.DiscardLogger()),
	)

	_, err := p.Generate(context.Background(), domain.Prompt{Message: "hi"}, domain.PolicyFull)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAllBackendsExhausted)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)

	var exhausted *domain.ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 12, exhausted.Attempts)
	provider.AssertNumberOfCalls(t, "Generate", 12)

	// Two attempt delays per backend, one backend delay between backends.
	var attemptDelays, backendDelays int
	for _, d := range sleeper.delays {
		switch d {
		case 500 * time.Millisecond:
			attemptDelays++
		case time.Second:
			backendDelays++
		}
	}
	assert.Equal(t, 8, attemptDelays)
	assert.Equal(t, 3, backendDelays)
	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricGenerationExhausted, observability.T("module", "dreams")))
}

func TestPipeline_BackendsInOrder(t *testing.T) {
	provider := new(mockProvider)
	provider.On("Generate", mock.Anything, mock.Anything).Return("", domain.ErrBackendUnavailable)
	sleeper := &recordingSleeper{}
	p := NewPipeline("love", provider, testConfig("a", "b"), WithSleeper(sleeper.sleep), WithLogger(observability.DiscardLogger()))

	_, err := p.Generate(context.Background(), domain.Prompt{}, domain.PolicyTeaser)
	require.Error(t, err)
	assert.Equal(t, []string{"a", "a", "a", "b", "b", "b"}, provider.models())
}

func TestPipeline_FirstAcceptedShortCircuits(t *testing.T) {
	provider := new(mockProvider)
	provider.On("Generate", mock.Anything, forModel("m1")).Return("", domain.ErrBackendRateLimited).Once()
	provider.On("Generate", mock.Anything, forModel("m1")).Return("  "+longText+"\n", nil).Once()
	sleeper := &recordingSleeper{}
	p := NewPipeline("dreams", provider, testConfig("m1", "m2"), WithSleeper(sleeper.sleep), WithLogger(observability.DiscardLogger()))

	res, err := p.Generate(context.Background(), domain.Prompt{}, domain.PolicyFull)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(longText), res.Text)
	assert.Equal(t, "m1", res.Backend)
	assert.Equal(t, 2, res.Attempts)
	provider.AssertExpectations(t)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, sleeper.delays)
}

func TestPipeline_ShortResponseIsRetried(t *testing.T) {
	provider := new(mockProvider)
	provider.On("Generate", mock.Anything, forModel("m1")).Return("too short", nil).Times(3)
	provider.On("Generate", mock.Anything, forModel("m2")).Return(longText, nil).Once()
	sleeper := &recordingSleeper{}
	metrics := observability.NewInMemoryMetrics()
	p := NewPipeline("numerology", provider, testConfig("m1", "m2"),
		WithSleeper(sleeper.sleep),
		WithMetrics(metrics),
		WithLogger(observability.DiscardLogger()),
	)

	res, err := p.Generate(context.Background(), domain.Prompt{}, domain.PolicyFull)
	require.NoError(t, err)
	assert.Equal(t, "m2", res.Backend)
	assert.Equal(t, 4, res.Attempts)
	provider.AssertExpectations(t)
	assert.Equal(t, int64(3), metrics.GetCounter(observability.MetricGenerationRejected,
		observability.T("module", "numerology"), observability.T("backend", "m1")))
}

func TestPipeline_ThresholdDependsOnPolicy(t *testing.T) {
	provider := new(mockProvider)
	provider.On("Generate", mock.Anything, mock.Anything).Return("fifteen chars!!", nil)
	p := NewPipeline("zodiac", provider, testConfig("m1"),
		WithSleeper((&recordingSleeper{}).sleep),
		WithLogger(observability.DiscardLogger()),
	)

	_, err := p.Generate(context.Background(), domain.Prompt{}, domain.PolicyFull)
	assert.ErrorIs(t, err, domain.ErrResponseTooShort)

	res, err := p.Generate(context.Background(), domain.Prompt{}, domain.PolicyTeaser)
	require.NoError(t, err)
	assert.Equal(t, "fifteen chars!!", res.Text)
}

func TestPipeline_PassesPolicyParams(t *testing.T) {
	provider := new(mockProvider)
	provider.On("Generate", mock.Anything, mock.Anything).Return(longText, nil)
	p := NewPipeline("horoscope", provider, testConfig("m1"), WithLogger(observability.DiscardLogger()))

	_, err := p.Generate(context.Background(), domain.Prompt{}, domain.PolicyFull)
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), domain.Prompt{}, domain.PolicyTeaser)
	require.NoError(t, err)

	require.Len(t, provider.Calls, 2)
	full := provider.Calls[0].Arguments.Get(1).(domain.Request).Params
	teaser := provider.Calls[1].Arguments.Get(1).(domain.Request).Params
	assert.Greater(t, full.MaxOutputTokens, teaser.MaxOutputTokens)
}

func TestPipeline_NoBackends(t *testing.T) {
	provider := new(mockProvider)
	p := NewPipeline("dreams", provider, Config{})
	_, err := p.Generate(context.Background(), domain.Prompt{}, domain.PolicyFull)
	assert.ErrorIs(t, err, domain.ErrNoBackends)
	provider.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestPipeline_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := new(mockProvider)
	provider.On("Generate", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return("", domain.ErrBackendUnavailable)
	p := NewPipeline("dreams", provider, testConfig("m1", "m2"), WithLogger(observability.DiscardLogger()))

	_, err := p.Generate(ctx, domain.Prompt{}, domain.PolicyFull)
	assert.ErrorIs(t, err, context.Canceled)
	provider.AssertNumberOfCalls(t, "Generate", 1)
}

func TestPipeline_OpenBreakerSkipsBackend(t *testing.T) {
	provider := new(mockProvider)
	provider.On("Generate", mock.Anything, forModel("flaky")).Return("", domain.ErrBackendUnavailable)
	provider.On("Generate", mock.Anything, forModel("steady")).Return(longText, nil)
	breakers := NewBreakers(BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 2,
	}, nil, observability.DiscardLogger())
	sleeper := &recordingSleeper{}
	p := NewPipeline("dreams", provider, testConfig("flaky", "steady"),
		WithBreakers(breakers),
		WithSleeper(sleeper.sleep),
		WithLogger(observability.DiscardLogger()),
	)

	res, err := p.Generate(context.Background(), domain.Prompt{}, domain.PolicyFull)
	require.NoError(t, err)
	assert.Equal(t, "steady", res.Backend)
	assert.Equal(t, "open", breakers.State("flaky"))

	// The third attempt on "flaky" was rejected by the open breaker.
	assert.Equal(t, []string{"flaky", "flaky", "steady"}, provider.models())
	// No attempt delay follows the rejected call.
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond, time.Second}, sleeper.delays)
}

func TestConfig_WorstCase(t *testing.T) {
	cfg := testConfig("m1", "m2", "m3", "m4")
	cfg.CallTimeout = 30 * time.Second

	// 12 hung calls, 8 attempt delays, 3 backend delays.
	assert.Equal(t, 367*time.Second, cfg.WorstCase())

	p := NewPipeline("dreams", new(mockProvider), cfg)
	assert.Equal(t, cfg.WorstCase(), p.WorstCase())

	cfg.CallTimeout = 0
	assert.Zero(t, cfg.WorstCase(), "unbounded without a call timeout")
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, SleepContext(context.Background(), 0))
	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}
