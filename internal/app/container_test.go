package app

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	entdomain "github.com/felixgeelhaar/augur/internal/entitlement/domain"
	genapp "github.com/felixgeelhaar/augur/internal/generation/application"
	generation "github.com/felixgeelhaar/augur/internal/generation/domain"
	readingapp "github.com/felixgeelhaar/augur/internal/reading/application"
	reading "github.com/felixgeelhaar/augur/internal/reading/domain"
	shared "github.com/felixgeelhaar/augur/internal/shared/domain"
	"github.com/felixgeelhaar/augur/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/augur/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/augur/pkg/config"
	"github.com/felixgeelhaar/augur/pkg/observability"
)

var longAnswer = strings.Repeat("The stars lean toward patience and a quiet kind of courage. ", 6)

// mockProvider is a mock implementation of generation.Provider.
type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Generate(ctx context.Context, req generation.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// answering returns a provider that accepts every request.
func answering() *mockProvider {
	p := new(mockProvider)
	p.On("Generate", mock.Anything, mock.Anything).Return(longAnswer, nil)
	return p
}

func failing(err error) *mockProvider {
	p := new(mockProvider)
	p.On("Generate", mock.Anything, mock.Anything).Return("", err)
	return p
}

func mustScope(t *testing.T, session string) shared.Scope {
	t.Helper()
	scope, err := shared.NewScope(reading.ModuleDreams, session)
	require.NoError(t, err)
	return scope
}

func noSleep(context.Context, time.Duration) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                 "test",
		LedgerURL:              "memory",
		GenerationProvider:     ProviderGemini,
		GenerationRetryBudget:  3,
		GenerationAttemptDelay: time.Millisecond,
		GenerationBackendDelay: time.Millisecond,
		FreeMessageLimit:       3,
		PaywallPolicy:          string(entdomain.PolicyHardDeny),
	}
}

func dreamInput(session string) readingapp.Input {
	return readingapp.Input{
		Module:    reading.ModuleDreams,
		SessionID: session,
		Request: reading.Request{
			UserMessage:       "I dreamt of a silver river",
			ModuleContextData: map[string]any{"mood": "calm"},
		},
	}
}

func TestNewContainer_MemoryMode(t *testing.T) {
	provider := answering()
	c, err := NewContainer(context.Background(), testConfig(), observability.DiscardLogger(),
		WithProvider(provider), WithSleeper(noSleep))
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, database.DriverMemory, c.LedgerDriver)
	assert.Nil(t, c.DB)
	assert.Nil(t, c.SQLite)
	assert.IsType(t, &eventbus.InProcessEventBus{}, c.Publisher)
	assert.Nil(t, c.Breakers)
	assert.Len(t, c.Catalog.Names(), 6)

	for _, m := range c.Catalog.All() {
		assert.Equal(t, entdomain.PolicyHardDeny, m.Policy, m.Name)
		assert.Equal(t, 3, m.FreeLimit, m.Name)
	}

	health := c.Health.Check(context.Background())
	assert.Equal(t, observability.HealthStatusHealthy, health.Status)
}

func TestNewContainer_ServesAndDenies(t *testing.T) {
	provider := answering()
	c, err := NewContainer(context.Background(), testConfig(), observability.DiscardLogger(),
		WithProvider(provider), WithSleeper(noSleep))
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		answer, err := c.Readings.Ask(ctx, dreamInput("s1"))
		require.NoError(t, err)
		assert.True(t, answer.Complete)
		assert.Equal(t, 2-i, answer.FreeMessagesRemaining)
	}

	_, err = c.Readings.Ask(ctx, dreamInput("s1"))
	assert.ErrorIs(t, err, reading.ErrQuotaExceeded)
	provider.AssertNumberOfCalls(t, "Generate", 3)
}

func TestNewContainer_PaymentEventsReachLedger(t *testing.T) {
	c, err := NewContainer(context.Background(), testConfig(), observability.DiscardLogger(),
		WithProvider(answering()), WithSleeper(noSleep))
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	scope := mustScope(t, "s2")
	payload, err := json.Marshal(entdomain.PaymentApproved{
		Module:    scope.Module,
		SessionID: scope.Session,
		PaymentID: "pay-1",
	})
	require.NoError(t, err)
	body, err := eventbus.NewEnvelope(ctx, uuid.New(), entdomain.RoutingKeyPaymentApproved, scope, time.Now().UTC(), payload)
	require.NoError(t, err)
	require.NoError(t, c.Publisher.Publish(ctx, entdomain.RoutingKeyPaymentApproved, body))

	state, err := c.Entitlements.Snapshot(ctx, scope)
	require.NoError(t, err)
	assert.True(t, state.IsPremium)

	for i := 0; i < 5; i++ {
		answer, err := c.Readings.Ask(ctx, dreamInput("s2"))
		require.NoError(t, err)
		assert.True(t, answer.Complete)
	}
}

func TestNewContainer_ExhaustsEveryBackend(t *testing.T) {
	provider := failing(generation.ErrBackendUnavailable)
	c, err := NewContainer(context.Background(), testConfig(), observability.DiscardLogger(),
		WithProvider(provider), WithSleeper(noSleep))
	require.NoError(t, err)
	defer c.Close()

	module, err := c.Catalog.Get(reading.ModuleDreams)
	require.NoError(t, err)

	_, err = c.Readings.Ask(context.Background(), dreamInput("s3"))
	var exhausted *generation.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, len(module.Backends)*3, exhausted.Attempts)
	provider.AssertNumberOfCalls(t, "Generate", len(module.Backends)*3)

	state, err := c.Entitlements.Snapshot(context.Background(), mustScope(t, "s3"))
	require.NoError(t, err)
	assert.Zero(t, state.MessageCount)
}

func TestNewContainer_OpenRouterModelIDs(t *testing.T) {
	cfg := testConfig()
	cfg.GenerationProvider = ProviderOpenRouter

	provider := answering()
	c, err := NewContainer(context.Background(), cfg, observability.DiscardLogger(),
		WithProvider(provider), WithSleeper(noSleep))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Readings.Ask(context.Background(), dreamInput("s4"))
	require.NoError(t, err)
	require.NotEmpty(t, provider.Calls)
	req := provider.Calls[0].Arguments.Get(1).(generation.Request)
	assert.True(t, strings.HasPrefix(req.Model, "google/"))
}

func TestNewContainer_ModulePolicyOverride(t *testing.T) {
	cfg := testConfig()
	cfg.ModulePolicies = map[string]string{"love": "teaser-then-block"}

	c, err := NewContainer(context.Background(), cfg, observability.DiscardLogger(),
		WithProvider(answering()))
	require.NoError(t, err)
	defer c.Close()

	love, err := c.Catalog.Get(reading.ModuleLove)
	require.NoError(t, err)
	assert.Equal(t, entdomain.PolicyTeaserThenBlock, love.Policy)

	dreams, err := c.Catalog.Get(reading.ModuleDreams)
	require.NoError(t, err)
	assert.Equal(t, entdomain.PolicyHardDeny, dreams.Policy)
}

func TestNewContainer_InvalidSettings(t *testing.T) {
	t.Run("unknown policy", func(t *testing.T) {
		cfg := testConfig()
		cfg.PaywallPolicy = "maybe"
		_, err := NewContainer(context.Background(), cfg, observability.DiscardLogger(), WithProvider(answering()))
		assert.ErrorIs(t, err, entdomain.ErrUnknownPolicy)
	})

	t.Run("negative free limit", func(t *testing.T) {
		cfg := testConfig()
		cfg.FreeMessageLimit = -1
		_, err := NewContainer(context.Background(), cfg, observability.DiscardLogger(), WithProvider(answering()))
		assert.ErrorContains(t, err, "free message limit")
	})

	t.Run("missing api key", func(t *testing.T) {
		_, err := NewContainer(context.Background(), testConfig(), observability.DiscardLogger())
		assert.ErrorContains(t, err, "GEMINI_API_KEY")
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := testConfig()
		cfg.GenerationProvider = "oracle"
		_, err := NewContainer(context.Background(), cfg, observability.DiscardLogger())
		assert.ErrorContains(t, err, "unknown generation provider")
	})
}

func TestNewContainer_CircuitBreakerEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.GenerationCircuitBreaker = true

	c, err := NewContainer(context.Background(), cfg, observability.DiscardLogger(),
		WithProvider(answering()))
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.Breakers)
	_, err = c.Readings.Ask(context.Background(), dreamInput("s5"))
	require.NoError(t, err)

	module, err := c.Catalog.Get(reading.ModuleDreams)
	require.NoError(t, err)
	assert.Equal(t, "closed", c.Breakers.State(module.Backends[0].Model))
}

func TestNewWorkerContainer(t *testing.T) {
	c, err := NewWorkerContainer(context.Background(), testConfig(), observability.DiscardLogger())
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.Entitlements)
	assert.Nil(t, c.Provider)
	assert.Nil(t, c.Readings)
	assert.NotEmpty(t, c.Registry.Consumers(entdomain.RoutingKeyPaymentApproved))
}

func TestNewContainer_RequestBudgetCoversHungBackends(t *testing.T) {
	cfg := testConfig()
	cfg.GenerationAttemptDelay = 500 * time.Millisecond
	cfg.GenerationBackendDelay = time.Second
	cfg.GenerationTimeout = 30 * time.Second

	c, err := NewContainer(context.Background(), cfg, observability.DiscardLogger(),
		WithProvider(answering()), WithSleeper(noSleep))
	require.NoError(t, err)
	defer c.Close()

	for _, m := range c.Catalog.All() {
		worst := pipelineConfig(cfg, m).WorstCase()
		assert.Greater(t, c.RequestBudget, worst, m.Name)
	}

	dreams, err := c.Catalog.Get(reading.ModuleDreams)
	require.NoError(t, err)
	hung := time.Duration(len(dreams.Backends)*3) * cfg.GenerationTimeout
	assert.Greater(t, c.RequestBudget, hung)
	assert.GreaterOrEqual(t, c.LockTTL, c.RequestBudget, "a session lock must outlive the request")
}

func TestNewContainer_ZeroTimeoutStillBounded(t *testing.T) {
	cfg := testConfig()
	cfg.GenerationTimeout = 0

	c, err := NewContainer(context.Background(), cfg, observability.DiscardLogger(),
		WithProvider(answering()), WithSleeper(noSleep))
	require.NoError(t, err)
	defer c.Close()

	assert.Greater(t, c.RequestBudget, genapp.DefaultCallTimeout)
	assert.GreaterOrEqual(t, c.LockTTL, minLockTTL)
}

func TestNewWorkerContainer_DefaultLockTTL(t *testing.T) {
	c, err := NewWorkerContainer(context.Background(), testConfig(), observability.DiscardLogger())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, minLockTTL, c.LockTTL)
	assert.Zero(t, c.RequestBudget)
}
