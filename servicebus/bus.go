package servicebus

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
	berr "github.com/next-trace/scg-saas-dispatch/contract/errors"
)

// Bus is a thin facade combining a Mediator, an Emitter and an optional integration
// EventPublisher. Handlers and consumers that need all three depend on it.
//
// Bus is concurrency-safe and contains no global state.
type Bus struct {
	mediator *Mediator
	emitter  *Emitter
	pub      cbus.EventPublisher
	logger   *slog.Logger

	closeOnce sync.Once
}

var _ cbus.Bus = (*Bus)(nil)

// BusOption configures a Bus instance.
type BusOption func(*busConfig)

type busConfig struct {
	mediator []MediatorOption
	emitter  []EmitterOption
}

// WithMediatorOptions forwards options to the underlying Mediator.
func WithMediatorOptions(opts ...MediatorOption) BusOption {
	return func(c *busConfig) { c.mediator = append(c.mediator, opts...) }
}

// WithEmitterOptions forwards options to the underlying Emitter.
func WithEmitterOptions(opts ...EmitterOption) BusOption {
	return func(c *busConfig) { c.emitter = append(c.emitter, opts...) }
}

// New constructs a Bus resolving handlers through p. pub and logger may be nil.
func New(p cbus.DependencyProvider, pub cbus.EventPublisher, logger *slog.Logger, opts ...BusOption) *Bus {
	if logger == nil {
		logger = slog.Default()
	}

	var c busConfig
	for _, opt := range opts {
		opt(&c)
	}

	mopts := append([]MediatorOption{WithMediatorLogger(logger)}, c.mediator...)
	eopts := append([]EmitterOption{WithEmitterLogger(logger)}, c.emitter...)

	return &Bus{
		mediator: NewMediator(p, mopts...),
		emitter:  NewEmitter(eopts...),
		pub:      pub,
		logger:   logger,
	}
}

// Mediator returns the underlying Mediator.
func (b *Bus) Mediator() *Mediator { return b.mediator }

// Emitter returns the underlying Emitter.
func (b *Bus) Emitter() *Emitter { return b.emitter }

// Send dispatches a request through the Mediator.
func (b *Bus) Send(ctx context.Context, request any) (any, error) {
	return b.mediator.Send(ctx, request)
}

// Publish fans a domain event out through the Emitter.
func (b *Bus) Publish(ctx context.Context, e cbus.DomainEvent) { b.emitter.Publish(ctx, e) }

// PublishIntegration publishes an integration event via the configured EventPublisher.
func (b *Bus) PublishIntegration(ctx context.Context, e cbus.IntegrationEvent, opts cbus.PublishOptions) error {
	if b.pub == nil {
		return fmt.Errorf("publish integration %T: %w", e, berr.ErrAsyncNotConfigured)
	}

	return b.pub.PublishIntegration(ctx, e, opts)
}

// Close releases the integration publisher when it owns resources.
func (b *Bus) Close() error {
	var err error

	b.closeOnce.Do(func() {
		if c, ok := b.pub.(io.Closer); ok {
			err = c.Close()
		}
	})

	return err
}
