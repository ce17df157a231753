package domain

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent represents something that happened to a session's
// entitlements or readings.
type DomainEvent interface {
	EventID() uuid.UUID
	Scope() Scope
	RoutingKey() string
	OccurredAt() time.Time
}

// BaseEvent provides common event functionality. Embedders expose their
// payload as exported fields; BaseEvent itself is not serialized.
type BaseEvent struct {
	eventID    uuid.UUID
	scope      Scope
	routingKey string
	occurredAt time.Time
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(scope Scope, routingKey string) BaseEvent {
	return BaseEvent{
		eventID:    uuid.New(),
		scope:      scope,
		routingKey: routingKey,
		occurredAt: time.Now().UTC(),
	}
}

func (e BaseEvent) EventID() uuid.UUID    { return e.eventID }
func (e BaseEvent) Scope() Scope          { return e.scope }
func (e BaseEvent) RoutingKey() string    { return e.routingKey }
func (e BaseEvent) OccurredAt() time.Time { return e.occurredAt }
