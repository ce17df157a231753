package cli

import (
	"time"

	entapp "github.com/felixgeelhaar/augur/internal/entitlement/application"
	prizeapp "github.com/felixgeelhaar/augur/internal/prize/application"
	readingapp "github.com/felixgeelhaar/augur/internal/reading/application"
	shared "github.com/felixgeelhaar/augur/internal/shared/domain"
	"github.com/felixgeelhaar/augur/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/augur/pkg/observability"
)

// App holds the CLI application dependencies.
type App struct {
	Readings     *readingapp.Service
	Entitlements *entapp.Service
	Prizes       *prizeapp.Service

	// Payments receives approved-payment events from the HTTP API.
	Payments eventbus.Publisher
	Health   *observability.HealthRegistry

	// HTTPAddr is where serve listens.
	HTTPAddr string
	// ShutdownTimeout bounds graceful shutdown of serve.
	ShutdownTimeout time.Duration
	// RequestTimeout is the longest a reading may take. serve keeps its
	// write timeout above it.
	RequestTimeout time.Duration
}

// NewApp creates a new CLI application with the provided services.
func NewApp(readings *readingapp.Service, entitlements *entapp.Service, prizes *prizeapp.Service) *App {
	return &App{
		Readings:        readings,
		Entitlements:    entitlements,
		Prizes:          prizes,
		Health:          observability.NewHealthRegistry(),
		HTTPAddr:        "0.0.0.0:8080",
		ShutdownTimeout: 30 * time.Second,
	}
}

// SetPayments updates the payment event publisher.
func (a *App) SetPayments(p eventbus.Publisher) {
	a.Payments = p
}

// SetHealth updates the health registry.
func (a *App) SetHealth(h *observability.HealthRegistry) {
	if h != nil {
		a.Health = h
	}
}

// Scope resolves a module name against the catalog and pairs it with a
// session.
func (a *App) Scope(module, session string) (shared.Scope, error) {
	m, err := a.Readings.Catalog().Get(module)
	if err != nil {
		return shared.Scope{}, err
	}
	return shared.NewScope(m.Name, session)
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
