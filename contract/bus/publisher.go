package bus

import "context"

// EventPublisher abstracts publishing integration events to a broker/bus.
// Library users provide an implementation that maps to Kafka/NATS/RabbitMQ etc.
type EventPublisher interface {
	PublishIntegration(ctx context.Context, evt IntegrationEvent, opts PublishOptions) error
}

// DomainPublisher fans a domain event out to in-process subscribers.
// Publish never reports subscriber failures; delivery is fire-and-forget.
type DomainPublisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}
