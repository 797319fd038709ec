package bus

import "context"

// Mediator routes a request to its single handler. Typed helpers remain available
// via generic functions in the servicebus package.
type Mediator interface {
	Send(ctx context.Context, request any) (any, error)
}

// Bus is a minimal, tech-agnostic interface that mirrors the capabilities of the
// concrete service bus. Consumers that want to depend only on contracts use it.
type Bus interface {
	Mediator
	DomainPublisher

	// PublishIntegration forwards an integration event to the configured EventPublisher.
	PublishIntegration(ctx context.Context, event IntegrationEvent, opts PublishOptions) error

	// Lifecycle
	Close() error
}
