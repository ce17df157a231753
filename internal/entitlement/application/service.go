package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/augur/internal/entitlement/domain"
	shared "github.com/felixgeelhaar/augur/internal/shared/domain"
	"github.com/felixgeelhaar/augur/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/augur/internal/shared/infrastructure/lock"
	"github.com/felixgeelhaar/augur/pkg/observability"
)

const lockPollInterval = 25 * time.Millisecond

// ErrInvalidPayment marks payment events that can never be applied.
var ErrInvalidPayment = errors.New("invalid payment event")

// Service owns every write to the entitlement ledger. Writes for one scope
// are serialized through a short-lived ledger lock.
type Service struct {
	store   domain.LedgerStore
	locks   lock.Manager
	events  *eventbus.EventPublisher
	metrics observability.Metrics
	logger  *slog.Logger
}

// NewService creates a new entitlement service.
func NewService(store domain.LedgerStore, locks lock.Manager, events *eventbus.EventPublisher, metrics observability.Metrics, logger *slog.Logger) *Service {
	if locks == nil {
		locks = lock.NewLocalManager()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, locks: locks, events: events, metrics: metrics, logger: logger}
}

// Ledger returns the ledger of a scope for reads.
func (s *Service) Ledger(scope shared.Scope) *domain.Ledger {
	return domain.NewLedger(s.store, scope)
}

// Snapshot reads the current state of a scope.
func (s *Service) Snapshot(ctx context.Context, scope shared.Scope) (domain.State, error) {
	return s.Ledger(scope).Read(ctx)
}

// Mutate runs fn with the scope's ledger lock held.
func (s *Service) Mutate(ctx context.Context, scope shared.Scope, fn func(*domain.Ledger) error) error {
	release, err := lock.Acquire(ctx, s.locks, "ledger:"+scope.Key(), lockPollInterval)
	if err != nil {
		return fmt.Errorf("lock ledger %s: %w", scope, err)
	}
	defer release()
	return fn(s.Ledger(scope))
}

// GrantPremium unlocks full access and clears any pending teaser block.
// The flag is written before the block is cleared. It reports whether the
// flag was newly set.
func (s *Service) GrantPremium(ctx context.Context, scope shared.Scope, source string) (bool, error) {
	return s.grantPremium(ctx, scope, source, "")
}

// GrantBonus adds bonus consultations and clears any pending block.
func (s *Service) GrantBonus(ctx context.Context, scope shared.Scope, n int, source string) error {
	err := s.Mutate(ctx, scope, func(l *domain.Ledger) error {
		if err := l.GrantBonus(ctx, n); err != nil {
			return err
		}
		return l.ClearBlockedMessage(ctx)
	})
	if err != nil {
		return err
	}

	s.recordGrant(ctx, scope, "bonus", source)
	s.events.Emit(ctx, domain.NewBonusGranted(scope, source, n))
	return nil
}

// GrantSpins adds extra prize-wheel spins.
func (s *Service) GrantSpins(ctx context.Context, scope shared.Scope, n int, source string) error {
	err := s.Mutate(ctx, scope, func(l *domain.Ledger) error {
		return l.GrantSpins(ctx, n)
	})
	if err != nil {
		return err
	}

	s.recordGrant(ctx, scope, "spins", source)
	s.events.Emit(ctx, domain.NewSpinsGranted(scope, source, n))
	return nil
}

// ApplyPayment reacts to a payment confirmation. Replays of the same
// payment ID are ignored. The payment marker is written last, so a crash
// midway is repaired by the processor's redelivery.
func (s *Service) ApplyPayment(ctx context.Context, payment domain.PaymentApproved) (bool, error) {
	scope, err := shared.NewScope(payment.Module, payment.SessionID)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidPayment, err)
	}
	if payment.PaymentID == "" {
		return false, fmt.Errorf("%w: %w", ErrInvalidPayment, domain.ErrEmptyPaymentID)
	}

	_, seen, err := s.store.GetString(ctx, s.Ledger(scope).Key("payment:"+payment.PaymentID))
	if err != nil {
		return false, fmt.Errorf("check payment %s: %w", payment.PaymentID, err)
	}
	if seen {
		s.logger.InfoContext(ctx, "ignoring replayed payment", "payment_id", payment.PaymentID, "scope", scope.Key())
		return false, nil
	}

	if _, err := s.grantPremium(ctx, scope, domain.SourcePayment, payment.PaymentID); err != nil {
		return false, err
	}

	var first bool
	err = s.Mutate(ctx, scope, func(l *domain.Ledger) error {
		var rerr error
		first, rerr = l.RecordPayment(ctx, payment.PaymentID)
		return rerr
	})
	return first, err
}

func (s *Service) grantPremium(ctx context.Context, scope shared.Scope, source, paymentID string) (bool, error) {
	var changed bool
	err := s.Mutate(ctx, scope, func(l *domain.Ledger) error {
		var gerr error
		if changed, gerr = l.GrantPremium(ctx); gerr != nil {
			return gerr
		}
		return l.ClearBlockedMessage(ctx)
	})
	if err != nil {
		return false, err
	}

	if changed {
		s.recordGrant(ctx, scope, "premium", source)
		s.events.Emit(ctx, domain.NewPremiumGranted(scope, source, paymentID))
	}
	return changed, nil
}

func (s *Service) recordGrant(ctx context.Context, scope shared.Scope, kind, source string) {
	s.metrics.Counter(observability.MetricGrantsApplied, 1,
		observability.T("kind", kind),
		observability.T("source", source),
		observability.T("module", scope.Module),
	)
	s.logger.InfoContext(ctx, "entitlement granted", "kind", kind, "source", source, "scope", scope.Key())
}
