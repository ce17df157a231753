// Package application answers reading requests: it decides access, runs
// the module's generation pipeline, shapes the text and updates the
// entitlement ledger.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	entapp "github.com/felixgeelhaar/augur/internal/entitlement/application"
	entitlement "github.com/felixgeelhaar/augur/internal/entitlement/domain"
	generation "github.com/felixgeelhaar/augur/internal/generation/domain"
	"github.com/felixgeelhaar/augur/internal/reading/domain"
	"github.com/felixgeelhaar/augur/internal/shaping"
	shared "github.com/felixgeelhaar/augur/internal/shared/domain"
	"github.com/felixgeelhaar/augur/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/augur/internal/shared/infrastructure/lock"
	"github.com/felixgeelhaar/augur/pkg/observability"
	"github.com/google/uuid"
)

// Generator produces raw text for a prompt and size policy.
type Generator interface {
	Generate(ctx context.Context, prompt generation.Prompt, policy generation.SizePolicy) (generation.Result, error)
}

// Input is one reading request. An empty SessionID serves the request
// statelessly from the client-supplied messageCount and isPremiumUser.
type Input struct {
	Module    string
	SessionID string
	Request   domain.Request
}

// Config wires a reading service.
type Config struct {
	Catalog      *domain.Catalog
	Generators   map[string]Generator
	Entitlements *entapp.Service
	Locks        lock.Manager
	Events       *eventbus.EventPublisher
	Metrics      observability.Metrics
	Logger       *slog.Logger
	NewID        func() string
}

// Service answers readings. Requests of one session are single-flight.
type Service struct {
	catalog      *domain.Catalog
	generators   map[string]Generator
	entitlements *entapp.Service
	locks        lock.Manager
	events       *eventbus.EventPublisher
	metrics      observability.Metrics
	logger       *slog.Logger
	newID        func() string
}

// NewService creates a reading service.
func NewService(cfg Config) *Service {
	if cfg.Locks == nil {
		cfg.Locks = lock.NewLocalManager()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.NewString() }
	}
	return &Service{
		catalog:      cfg.Catalog,
		generators:   cfg.Generators,
		entitlements: cfg.Entitlements,
		locks:        cfg.Locks,
		events:       cfg.Events,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		newID:        cfg.NewID,
	}
}

// Catalog returns the module catalog.
func (s *Service) Catalog() *domain.Catalog {
	return s.catalog
}

// Ask answers one reading. Validation and access are resolved before any
// backend call; a DENY decision fails with *domain.QuotaError.
func (s *Service) Ask(ctx context.Context, in Input) (domain.Answer, error) {
	module, err := s.catalog.Get(in.Module)
	if err != nil {
		return domain.Answer{}, err
	}
	if err := in.Request.Validate(module); err != nil {
		return domain.Answer{}, err
	}

	gen, ok := s.generators[module.Name]
	if !ok {
		return domain.Answer{}, fmt.Errorf("module %s: %w", module.Name, generation.ErrNoBackends)
	}

	logger := observability.LogOperation(s.logger, "reading.ask", observability.ModuleKey, module.Name)

	if in.SessionID == "" {
		return s.askStateless(ctx, module, gen, in.Request, logger)
	}

	scope, err := shared.NewScope(module.Name, in.SessionID)
	if err != nil {
		return domain.Answer{}, &domain.ValidationError{Code: domain.CodeInvalidSession, Message: err.Error()}
	}

	release, err := s.locks.TryAcquire(ctx, "reading:"+scope.Key())
	if errors.Is(err, lock.ErrHeld) {
		return domain.Answer{}, domain.ErrRequestInFlight
	}
	if err != nil {
		return domain.Answer{}, fmt.Errorf("lock session: %w", err)
	}
	defer release()

	state, err := s.entitlements.Snapshot(ctx, scope)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("read ledger: %w", err)
	}

	decision := entitlement.Decide(state, state.NextOrdinal(), module.FreeLimit, module.Policy)
	if decision.Access == entitlement.AccessDeny {
		return domain.Answer{}, s.deny(ctx, module, logger)
	}

	answer, err := s.generate(ctx, module, gen, in.Request, decision, logger)
	if err != nil {
		return domain.Answer{}, err
	}

	next, err := s.commit(ctx, scope, state, decision, &answer)
	if err != nil {
		logger.ErrorContext(ctx, "failed to record reading", observability.ErrorKey, err)
		return domain.Answer{}, fmt.Errorf("record reading: %w", err)
	}
	answer.FreeMessagesRemaining = next.FreeMessagesRemaining(module.FreeLimit)

	if decision.Access == entitlement.AccessTeaser {
		s.events.Emit(ctx, domain.NewTeaserServed(scope, answer.MessageID, answer.Backend))
	}
	s.served(ctx, module, decision, answer, logger)
	return answer, nil
}

// askStateless trusts the client-held counters and writes nothing.
func (s *Service) askStateless(ctx context.Context, module domain.Module, gen Generator, req domain.Request, logger *slog.Logger) (domain.Answer, error) {
	ordinal := req.Ordinal()
	state := entitlement.State{MessageCount: ordinal - 1, IsPremium: req.IsPremiumUser}

	decision := entitlement.Decide(state, ordinal, module.FreeLimit, module.Policy)
	if decision.Access == entitlement.AccessDeny {
		return domain.Answer{}, s.deny(ctx, module, logger)
	}

	answer, err := s.generate(ctx, module, gen, req, decision, logger)
	if err != nil {
		return domain.Answer{}, err
	}
	if decision.Consume == entitlement.ConsumeFreeQuota {
		state.MessageCount++
	}
	answer.FreeMessagesRemaining = state.FreeMessagesRemaining(module.FreeLimit)
	s.served(ctx, module, decision, answer, logger)
	return answer, nil
}

func (s *Service) generate(ctx context.Context, module domain.Module, gen Generator, req domain.Request, decision entitlement.Decision, logger *slog.Logger) (domain.Answer, error) {
	policy := generation.PolicyFull
	if decision.Access == entitlement.AccessTeaser {
		policy = generation.PolicyTeaser
	}

	result, err := gen.Generate(ctx, domain.BuildPrompt(module, req), policy)
	if err != nil {
		s.metrics.Counter(observability.MetricReadingsFailed, 1,
			observability.T("module", module.Name),
			observability.T("code", string(domain.Classify(err))),
		)
		logger.WarnContext(ctx, "reading generation failed", observability.ErrorKey, err)
		return domain.Answer{}, err
	}

	answer := domain.Answer{
		Module:      module.Name,
		Backend:     result.Backend,
		Attempts:    result.Attempts,
		ShowPaywall: decision.ShowPaywall(),
	}
	if policy == generation.PolicyTeaser {
		answer.Text = shaping.ShapeTeaser(result.Text, module.Hook)
		answer.PaywallMessage = module.PaywallMessage
	} else {
		answer.Text = shaping.ShapeFull(result.Text, module.MinRepairLen)
		answer.Complete = true
	}

	if strings.TrimSpace(answer.Text) == "" {
		return domain.Answer{}, domain.ErrEmptyResponse
	}
	return answer, nil
}

// commit records what the answer consumed and returns the resulting state.
func (s *Service) commit(ctx context.Context, scope shared.Scope, state entitlement.State, decision entitlement.Decision, answer *domain.Answer) (entitlement.State, error) {
	next := state
	err := s.entitlements.Mutate(ctx, scope, func(l *entitlement.Ledger) error {
		switch {
		case decision.Access == entitlement.AccessTeaser:
			answer.MessageID = s.newID()
			// A grant may have landed while generating; it already cleared
			// the block and must not see it set again.
			current, err := l.Read(ctx)
			if err != nil {
				return err
			}
			next = current
			if current.IsPremium || current.BonusConsultations > 0 {
				return nil
			}
			next.BlockedMessageID = answer.MessageID
			return l.SetBlockedMessage(ctx, answer.MessageID)
		case decision.Consume == entitlement.ConsumeBonus:
			took, err := l.ConsumeBonusConsultation(ctx)
			if err != nil {
				return err
			}
			if took {
				next.BonusConsultations--
				return nil
			}
			// The bonus was spent elsewhere; fall back to the free quota.
			next.MessageCount++
			return l.RecordConsumedMessage(ctx)
		case decision.Consume == entitlement.ConsumeFreeQuota:
			next.MessageCount++
			return l.RecordConsumedMessage(ctx)
		}
		return nil
	})
	return next, err
}

func (s *Service) deny(ctx context.Context, module domain.Module, logger *slog.Logger) error {
	s.metrics.Counter(observability.MetricReadingsDenied, 1, observability.T("module", module.Name))
	logger.InfoContext(ctx, "reading denied, free quota exhausted")
	return &domain.QuotaError{Module: module.Name, PaywallMessage: module.PaywallMessage}
}

func (s *Service) served(ctx context.Context, module domain.Module, decision entitlement.Decision, answer domain.Answer, logger *slog.Logger) {
	s.metrics.Counter(observability.MetricReadingsServed, 1,
		observability.T("module", module.Name),
		observability.T("access", string(decision.Access)),
		observability.T("consume", decision.Consume.String()),
	)
	logger.InfoContext(ctx, "reading served",
		"access", string(decision.Access),
		"consume", decision.Consume.String(),
		observability.BackendKey, answer.Backend,
		"attempts", answer.Attempts,
	)
}
