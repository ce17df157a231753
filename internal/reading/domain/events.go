package domain

import shared "github.com/felixgeelhaar/augur/internal/shared/domain"

// RoutingKeyTeaserServed is published when a teaser blocks a session.
const RoutingKeyTeaserServed = "reading.teaser.served"

// TeaserServed records a teaser and the block it set.
type TeaserServed struct {
	shared.BaseEvent
	MessageID string `json:"messageId"`
	Backend   string `json:"backend"`
}

// NewTeaserServed creates a TeaserServed event.
func NewTeaserServed(scope shared.Scope, messageID, backend string) TeaserServed {
	return TeaserServed{
		BaseEvent: shared.NewBaseEvent(scope, RoutingKeyTeaserServed),
		MessageID: messageID,
		Backend:   backend,
	}
}
