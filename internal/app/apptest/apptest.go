// Package apptest builds in-memory containers for adapter tests.
package apptest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/augur/internal/app"
	generation "github.com/felixgeelhaar/augur/internal/generation/domain"
	"github.com/felixgeelhaar/augur/pkg/config"
	"github.com/felixgeelhaar/augur/pkg/observability"
)

// Reply is what Provider answers with. It passes every module threshold.
var Reply = strings.Repeat("The river carries what you are ready to release. ", 5)

// Provider is a mock generation provider.
type Provider struct {
	mock.Mock
}

// NewProvider returns a Provider that answers every request with Reply.
func NewProvider() *Provider {
	p := new(Provider)
	p.On("Generate", mock.Anything, mock.Anything).Return(Reply, nil)
	return p
}

// Name identifies the provider in logs.
func (p *Provider) Name() string { return "apptest" }

func (p *Provider) Generate(ctx context.Context, req generation.Request) (string, error) {
	args := p.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// Config returns an in-memory configuration with a policy for every module.
func Config(policy string) *config.Config {
	return &config.Config{
		AppEnv:                "test",
		LedgerURL:             "memory",
		GenerationProvider:    app.ProviderGemini,
		GenerationRetryBudget: 1,
		FreeMessageLimit:      3,
		PaywallPolicy:         policy,
	}
}

// NewContainer builds a container around provider without retry delays.
// It is closed when the test ends.
func NewContainer(t *testing.T, cfg *config.Config, provider generation.Provider, opts ...app.Option) *app.Container {
	t.Helper()

	opts = append([]app.Option{
		app.WithProvider(provider),
		app.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	}, opts...)
	c, err := app.NewContainer(context.Background(), cfg, observability.DiscardLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}
