package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entapp "github.com/felixgeelhaar/augur/internal/entitlement/application"
	entitlement "github.com/felixgeelhaar/augur/internal/entitlement/domain"
	"github.com/felixgeelhaar/augur/internal/prize/domain"
	shared "github.com/felixgeelhaar/augur/internal/shared/domain"
	"github.com/felixgeelhaar/augur/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/augur/internal/shared/infrastructure/lock"
	"github.com/felixgeelhaar/augur/pkg/observability"
)

// ErrUnknownCatalog is returned for modules without a prize wheel.
var ErrUnknownCatalog = errors.New("no prize catalog for module")

// Result is the outcome of an applied spin.
type Result struct {
	Prize  domain.Prize
	Source domain.SpinSource
	State  entitlement.State
}

// Status describes spin availability for a scope.
type Status struct {
	CanSpin            bool `json:"canSpin"`
	SpinBalance        int  `json:"spinBalance"`
	DailyFreeAvailable bool `json:"dailyFreeAvailable"`
}

// Config wires a spin service.
type Config struct {
	Entitlements *entapp.Service
	Catalogs     map[string]*domain.Table
	Locks        lock.Manager
	RNG          domain.RNG
	Clock        func() time.Time
	Events       *eventbus.EventPublisher
	Metrics      observability.Metrics
	Logger       *slog.Logger
}

// Service resolves prize-wheel spins. Spins of one scope are single-flight:
// a spin started while another is resolving fails with ErrSpinInProgress.
type Service struct {
	entitlements *entapp.Service
	catalogs     map[string]*domain.Table
	locks        lock.Manager
	rng          domain.RNG
	clock        func() time.Time
	events       *eventbus.EventPublisher
	metrics      observability.Metrics
	logger       *slog.Logger
}

// NewService creates a spin service.
func NewService(cfg Config) *Service {
	if cfg.Locks == nil {
		cfg.Locks = lock.NewLocalManager()
	}
	if cfg.RNG == nil {
		cfg.RNG = domain.SystemRNG{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		entitlements: cfg.Entitlements,
		catalogs:     cfg.Catalogs,
		locks:        cfg.Locks,
		rng:          cfg.RNG,
		clock:        cfg.Clock,
		events:       cfg.Events,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
}

// Status reports whether the scope can spin today.
func (s *Service) Status(ctx context.Context, scope shared.Scope) (Status, error) {
	if _, ok := s.catalogs[scope.Module]; !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrUnknownCatalog, scope.Module)
	}
	state, err := s.entitlements.Snapshot(ctx, scope)
	if err != nil {
		return Status{}, err
	}
	today := entitlement.Today(s.clock())
	return Status{
		CanSpin:            domain.CanSpin(state, today),
		SpinBalance:        state.SpinBalance,
		DailyFreeAvailable: state.LastFreeSpinDate != today,
	}, nil
}

// Spin consumes one spin, draws a prize and applies it to the ledger.
func (s *Service) Spin(ctx context.Context, scope shared.Scope) (Result, error) {
	table, ok := s.catalogs[scope.Module]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownCatalog, scope.Module)
	}

	release, err := s.locks.TryAcquire(ctx, "spin:"+scope.Key())
	if errors.Is(err, lock.ErrHeld) {
		return Result{}, domain.ErrSpinInProgress
	}
	if err != nil {
		return Result{}, err
	}
	defer release()

	source, err := s.consumeSpin(ctx, scope)
	if err != nil {
		return Result{}, err
	}

	prize := table.Draw(s.rng)
	if err := s.apply(ctx, scope, prize); err != nil {
		return Result{}, fmt.Errorf("apply prize %s: %w", prize.ID, err)
	}

	state, err := s.entitlements.Snapshot(ctx, scope)
	if err != nil {
		return Result{}, err
	}

	s.metrics.Counter(observability.MetricSpins, 1,
		observability.T("module", scope.Module),
		observability.T("kind", string(prize.Kind)),
	)
	s.logger.InfoContext(ctx, "spin resolved", "scope", scope.Key(), "prize", prize.ID, "source", source)
	s.events.Emit(ctx, domain.NewSpinResolved(scope, prize, source))

	return Result{Prize: prize, Source: source, State: state}, nil
}

func (s *Service) consumeSpin(ctx context.Context, scope shared.Scope) (domain.SpinSource, error) {
	today := entitlement.Today(s.clock())
	var source domain.SpinSource

	err := s.entitlements.Mutate(ctx, scope, func(l *entitlement.Ledger) error {
		state, err := l.Read(ctx)
		if err != nil {
			return err
		}

		var ok bool
		if source, ok = domain.NextSpinSource(state, today); !ok {
			return domain.ErrNoSpinAvailable
		}

		if source == domain.SpinFromBalance {
			if took, err := l.ConsumeSpin(ctx); err != nil || !took {
				if err == nil {
					err = domain.ErrNoSpinAvailable
				}
				return err
			}
			return nil
		}
		return l.MarkFreeSpinUsed(ctx, today)
	})

	return source, err
}

func (s *Service) apply(ctx context.Context, scope shared.Scope, prize domain.Prize) error {
	switch prize.Kind {
	case domain.KindBonus:
		return s.entitlements.GrantBonus(ctx, scope, prize.Amount, entitlement.SourcePrize)
	case domain.KindPremium:
		_, err := s.entitlements.GrantPremium(ctx, scope, entitlement.SourcePrize)
		return err
	default:
		return nil
	}
}
