package domain

import shared "github.com/felixgeelhaar/augur/internal/shared/domain"

// RoutingKeySpinResolved is published after every applied spin.
const RoutingKeySpinResolved = "prize.spin.resolved"

// SpinResolved records the outcome of one spin.
type SpinResolved struct {
	shared.BaseEvent
	PrizeID string     `json:"prizeId"`
	Kind    Kind       `json:"kind"`
	Amount  int        `json:"amount,omitempty"`
	Source  SpinSource `json:"source"`
}

// NewSpinResolved creates a SpinResolved event.
func NewSpinResolved(scope shared.Scope, prize Prize, source SpinSource) SpinResolved {
	return SpinResolved{
		BaseEvent: shared.NewBaseEvent(scope, RoutingKeySpinResolved),
		PrizeID:   prize.ID,
		Kind:      prize.Kind,
		Amount:    prize.Amount,
		Source:    source,
	}
}
