package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	entapp "github.com/felixgeelhaar/augur/internal/entitlement/application"
	entdomain "github.com/felixgeelhaar/augur/internal/entitlement/domain"
	"github.com/felixgeelhaar/augur/internal/entitlement/infrastructure/persistence"
	genapp "github.com/felixgeelhaar/augur/internal/generation/application"
	generation "github.com/felixgeelhaar/augur/internal/generation/domain"
	"github.com/felixgeelhaar/augur/internal/generation/infrastructure/gemini"
	"github.com/felixgeelhaar/augur/internal/generation/infrastructure/openrouter"
	prizeapp "github.com/felixgeelhaar/augur/internal/prize/application"
	prize "github.com/felixgeelhaar/augur/internal/prize/domain"
	readingapp "github.com/felixgeelhaar/augur/internal/reading/application"
	reading "github.com/felixgeelhaar/augur/internal/reading/domain"
	"github.com/felixgeelhaar/augur/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/augur/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/augur/internal/shared/infrastructure/lock"
	"github.com/felixgeelhaar/augur/pkg/config"
	"github.com/felixgeelhaar/augur/pkg/observability"
)

// Generation providers.
const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
)

// minLockTTL bounds how long a crashed replica can hold a lock. Session
// locks are raised to the request budget when that is longer.
const minLockTTL = 2 * time.Minute

// requestSlack covers the ledger reads and writes around generation.
const requestSlack = 15 * time.Second

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics observability.Metrics
	Health  *observability.HealthRegistry

	// Ledger storage
	LedgerDriver database.Driver
	LedgerStore  entdomain.LedgerStore
	DB           *pgxpool.Pool
	SQLite       *sql.DB
	LedgerRedis  *redis.Client

	// Session locks
	LockRedis *redis.Client
	Locks     lock.Manager
	LockTTL   time.Duration

	// RequestBudget is the longest a reading can take when every backend
	// hangs until its call timeout. Session locks and the HTTP write
	// timeout must outlast it.
	RequestBudget time.Duration

	// Events
	Registry  *eventbus.ConsumerRegistry
	Publisher eventbus.Publisher
	Events    *eventbus.EventPublisher

	// Generation
	Provider generation.Provider
	Breakers *genapp.Breakers
	Catalog  *reading.Catalog

	// Services
	Entitlements *entapp.Service
	Prizes       *prizeapp.Service
	Readings     *readingapp.Service
}

// Option customizes container construction.
type Option func(*options)

type options struct {
	provider generation.Provider
	sleeper  genapp.Sleeper
	metrics  observability.Metrics
	rng      prize.RNG
	clock    func() time.Time
	lockTTL  time.Duration
}

func buildOptions(opts []Option) *options {
	o := &options{metrics: observability.NewInMemoryMetrics(), lockTTL: minLockTTL}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithProvider replaces the configured generation provider.
func WithProvider(p generation.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithSleeper replaces the retry delay implementation of every pipeline.
func WithSleeper(s genapp.Sleeper) Option {
	return func(o *options) { o.sleeper = s }
}

// WithMetrics sets the metrics sink shared by all services.
func WithMetrics(m observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRNG sets the prize wheel random source.
func WithRNG(rng prize.RNG) Option {
	return func(o *options) { o.rng = rng }
}

// WithClock sets the clock used for daily spin accounting.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// NewContainer creates a new dependency injection container. Backing
// services are picked from the configuration: the ledger from LEDGER_URL,
// shared locks from REDIS_URL and the broker from RABBITMQ_URL. Anything
// unset runs in process.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Container, error) {
	catalog, err := configureCatalog(reading.BuiltinCatalog(), cfg)
	if err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	budget := requestBudget(cfg, catalog)
	o.lockTTL = max(o.lockTTL, budget)

	c, err := newBase(ctx, cfg, logger, o)
	if err != nil {
		return nil, err
	}
	c.Catalog = catalog
	c.RequestBudget = budget

	c.Provider = o.provider
	if c.Provider == nil {
		if c.Provider, err = newProvider(ctx, cfg); err != nil {
			c.Close()
			return nil, err
		}
	}
	if cfg.GenerationCircuitBreaker {
		c.Breakers = genapp.NewBreakers(genapp.DefaultBreakerConfig(), c.Metrics, logger)
	}

	generators := make(map[string]readingapp.Generator, len(catalog.Names()))
	tables := make(map[string]*prize.Table, len(catalog.Names()))
	for _, m := range catalog.All() {
		generators[m.Name] = c.newPipeline(m, o.sleeper)

		table, err := prize.NewTable(m.Prizes)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("prize table for %s: %w", m.Name, err)
		}
		tables[m.Name] = table
	}

	c.Prizes = prizeapp.NewService(prizeapp.Config{
		Entitlements: c.Entitlements,
		Catalogs:     tables,
		Locks:        c.Locks,
		RNG:          o.rng,
		Clock:        o.clock,
		Events:       c.Events,
		Metrics:      c.Metrics,
		Logger:       logger,
	})

	c.Readings = readingapp.NewService(readingapp.Config{
		Catalog:      catalog,
		Generators:   generators,
		Entitlements: c.Entitlements,
		Locks:        c.Locks,
		Events:       c.Events,
		Metrics:      c.Metrics,
		Logger:       logger,
	})

	logger.Info("container ready",
		"ledger", c.LedgerDriver.String(),
		"provider", c.Provider.Name(),
		"modules", strings.Join(catalog.Names(), ","),
		"circuit_breaker", cfg.GenerationCircuitBreaker,
		"request_budget", budget,
	)
	return c, nil
}

// NewWorkerContainer creates the subset of the container the event worker
// needs: ledger, locks, events and the entitlement service. It never
// touches a generation provider.
func NewWorkerContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Container, error) {
	c, err := newBase(ctx, cfg, logger, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	logger.Info("worker container ready", "ledger", c.LedgerDriver.String())
	return c, nil
}

func newBase(ctx context.Context, cfg *config.Config, logger *slog.Logger, o *options) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: o.metrics,
		Health:  observability.NewHealthRegistry(),
		LockTTL: o.lockTTL,
	}

	if err := c.initLedger(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initLocks(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initEvents(); err != nil {
		c.Close()
		return nil, err
	}

	c.Entitlements = entapp.NewService(c.LedgerStore, c.Locks, c.Events, c.Metrics, logger)
	if bus, ok := c.Publisher.(*eventbus.InProcessEventBus); ok {
		bus.RegisterConsumer(entapp.NewPaymentConsumer(c.Entitlements))
	}
	return c, nil
}

func (c *Container) initLedger(ctx context.Context) error {
	url := c.Config.LedgerURL
	c.LedgerDriver = database.DetectDriver(url)

	switch c.LedgerDriver {
	case database.DriverMemory:
		c.LedgerStore = persistence.NewMemoryStore()
		c.Logger.Warn("using in-memory ledger, entitlements are lost on restart")

	case database.DriverRedis:
		client, err := database.OpenRedis(ctx, url)
		if err != nil {
			return fmt.Errorf("failed to connect to ledger Redis: %w", err)
		}
		c.LedgerRedis = client
		store := persistence.NewRedisStore(client, 0)
		c.LedgerStore = store
		c.Health.Register("ledger", observability.PingChecker("ledger", true, store.Ping))

	case database.DriverPostgres:
		pool, err := database.OpenPostgres(ctx, url)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		c.DB = pool
		store, err := persistence.NewPostgresStore(ctx, pool)
		if err != nil {
			return fmt.Errorf("failed to prepare ledger table: %w", err)
		}
		c.LedgerStore = store
		c.Health.Register("ledger", observability.PingChecker("ledger", true, store.Ping))

	case database.DriverSQLite:
		db, err := database.OpenSQLite(ctx, database.SQLitePath(url))
		if err != nil {
			return fmt.Errorf("failed to initialize SQLite: %w", err)
		}
		c.SQLite = db
		store, err := persistence.NewSQLiteStore(ctx, db)
		if err != nil {
			return fmt.Errorf("failed to prepare ledger table: %w", err)
		}
		c.LedgerStore = store
		c.Health.Register("ledger", observability.PingChecker("ledger", true, store.Ping))
	}

	c.Logger.Info("ledger store ready", "driver", c.LedgerDriver.String())
	return nil
}

func (c *Container) initLocks(ctx context.Context) error {
	if c.Config.RedisURL == "" {
		c.Locks = lock.NewLocalManager()
		return nil
	}

	client := c.LedgerRedis
	if client == nil || c.Config.RedisURL != c.Config.LedgerURL {
		var err error
		client, err = database.OpenRedis(ctx, c.Config.RedisURL)
		if err != nil {
			if !c.Config.IsDevelopment() {
				return fmt.Errorf("failed to connect to Redis: %w", err)
			}
			c.Logger.Warn("Redis not available, session locks are process local", "error", err)
			c.Locks = lock.NewLocalManager()
			return nil
		}
		c.LockRedis = client
	}

	c.Locks = lock.NewRedisManager(client, c.LockTTL, c.Logger)
	c.Health.Register("locks", observability.PingChecker("locks", false, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}))
	c.Logger.Info("connected to Redis for session locks")
	return nil
}

func (c *Container) initEvents() error {
	c.Registry = eventbus.NewConsumerRegistry(c.Metrics, c.Logger)

	if c.Config.RabbitMQURL != "" {
		publisher, err := eventbus.NewRabbitMQPublisher(c.Config.RabbitMQURL, c.Logger)
		switch {
		case err == nil:
			c.Publisher = publisher
			c.Health.Register("broker", observability.PingChecker("broker", false, publisher.Ping))
		case c.Config.IsDevelopment():
			c.Logger.Warn("RabbitMQ not available, using in-process event bus", "error", err)
		default:
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
	}

	if c.Publisher == nil {
		c.Publisher = eventbus.NewInProcessEventBus(c.Registry, c.Logger)
	}
	c.Events = eventbus.NewEventPublisher(c.Publisher, c.Metrics, c.Logger)
	return nil
}

func (c *Container) newPipeline(m reading.Module, sleeper genapp.Sleeper) *genapp.Pipeline {
	opts := []genapp.Option{
		genapp.WithMetrics(c.Metrics),
		genapp.WithLogger(c.Logger),
	}
	if c.Breakers != nil {
		opts = append(opts, genapp.WithBreakers(c.Breakers))
	}
	if sleeper != nil {
		opts = append(opts, genapp.WithSleeper(sleeper))
	}

	return genapp.NewPipeline(m.Name, c.Provider, pipelineConfig(c.Config, m), opts...)
}

func pipelineConfig(cfg *config.Config, m reading.Module) genapp.Config {
	timeout := cfg.GenerationTimeout
	if timeout <= 0 {
		timeout = genapp.DefaultCallTimeout
	}
	return genapp.Config{
		Backends:     m.Backends,
		RetryBudget:  cfg.GenerationRetryBudget,
		AttemptDelay: cfg.GenerationAttemptDelay,
		BackendDelay: cfg.GenerationBackendDelay,
		Thresholds:   m.Thresholds,
		CallTimeout:  timeout,
	}
}

// requestBudget returns the slowest module's worst-case pipeline run plus
// room for the ledger work around it.
func requestBudget(cfg *config.Config, catalog *reading.Catalog) time.Duration {
	var worst time.Duration
	for _, m := range catalog.All() {
		worst = max(worst, pipelineConfig(cfg, m).WorstCase())
	}
	return worst + requestSlack
}

// configureCatalog applies the quota, paywall and provider settings to the
// builtin modules.
func configureCatalog(base *reading.Catalog, cfg *config.Config) (*reading.Catalog, error) {
	policies := make(map[string]entdomain.PaywallPolicy)
	for _, name := range base.Names() {
		p, err := entdomain.ParsePaywallPolicy(cfg.PolicyFor(name))
		if err != nil {
			return nil, fmt.Errorf("paywall policy for %s: %w", name, err)
		}
		policies[name] = p
	}

	if cfg.FreeMessageLimit < 0 {
		return nil, fmt.Errorf("free message limit must not be negative, got %d", cfg.FreeMessageLimit)
	}

	// An unset limit keeps each module's own default.
	return base.Configure(func(m *reading.Module) {
		if cfg.FreeMessageLimit > 0 {
			m.FreeLimit = cfg.FreeMessageLimit
		}
		m.Policy = policies[m.Name]
		if cfg.GenerationProvider == ProviderOpenRouter {
			backends := make([]generation.Backend, len(m.Backends))
			for i, b := range m.Backends {
				b.Model = openrouter.ModelID(b.Model)
				backends[i] = b
			}
			m.Backends = backends
		}
	})
}

func newProvider(ctx context.Context, cfg *config.Config) (generation.Provider, error) {
	switch cfg.GenerationProvider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, errors.New("GEMINI_API_KEY is required for the gemini provider")
		}
		return gemini.New(ctx, cfg.GeminiAPIKey)
	case ProviderOpenRouter:
		if cfg.OpenRouterAPIKey == "" {
			return nil, errors.New("OPENROUTER_API_KEY is required for the openrouter provider")
		}
		return openrouter.NewClient(&http.Client{}, cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.GenerationProvider)
	}
}

// Close releases every connection the container opened.
func (c *Container) Close() {
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.LockRedis != nil {
		if err := c.LockRedis.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		}
	}

	if c.LedgerRedis != nil {
		if err := c.LedgerRedis.Close(); err != nil {
			c.Logger.Warn("error closing ledger Redis connection", "error", err)
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}

	if c.DB != nil {
		c.DB.Close()
		c.Logger.Info("PostgreSQL connection closed")
	}

	if c.SQLite != nil {
		if err := c.SQLite.Close(); err != nil {
			c.Logger.Warn("error closing SQLite connection", "error", err)
		} else {
			c.Logger.Info("SQLite connection closed")
		}
	}
}
