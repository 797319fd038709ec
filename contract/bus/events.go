package bus

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is an immutable fact about something that already happened.
// Domain events are fanned out in-process only and never persisted.
type DomainEvent interface {
	EventID() uuid.UUID
	OccurredAt() time.Time
}

// BaseEvent carries the identity and timestamp every domain event has.
// Embed it by value and build it with NewBaseEvent.
type BaseEvent struct {
	ID uuid.UUID `json:"eventId"`
	At time.Time `json:"occurredAt"`
}

// NewBaseEvent stamps a new event identity at the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{ID: uuid.New(), At: time.Now().UTC()}
}

func (e BaseEvent) EventID() uuid.UUID    { return e.ID }
func (e BaseEvent) OccurredAt() time.Time { return e.At }

// IntegrationEvent represents events destined to external brokers (async). Topic() may guide routing.
type IntegrationEvent interface{ Topic() string }
