// Package kafka publishes integration events (rate-limit alerts) to Kafka topics.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
	berr "github.com/next-trace/scg-saas-dispatch/contract/errors"
)

// Writer is a minimal Kafka-like writer interface.
// NewWithKgo adapts a franz-go client to it; tests use fakes.
type Writer interface {
	Write(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Adapter implements cbus.EventPublisher using an injected Writer.
type Adapter struct {
	Writer     Writer
	Propagator cbus.HeaderPropagator

	closer func()
}

var _ cbus.EventPublisher = (*Adapter)(nil)

// New creates a new Kafka adapter instance with the provided writer.
func New(w Writer) *Adapter {
	return &Adapter{Writer: w, Propagator: cbus.CorrelationPropagator{}}
}

// PublishIntegration writes e as JSON, keyed by opts.Key so alerts for one identifier stay ordered.
func (a *Adapter) PublishIntegration(ctx context.Context, e cbus.IntegrationEvent, opts cbus.PublishOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Writer == nil {
		return fmt.Errorf("kafka publish: %w", berr.ErrPublishFailed)
	}

	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka publish serialize: %w", errors.Join(berr.ErrSerializationFailed, err))
	}

	topic := topicForEvent(e, opts)
	headers := publishHeaders(opts)

	if a.Propagator != nil {
		a.Propagator.Inject(ctx, headers)
	}

	var key []byte
	if opts.Key != "" {
		key = []byte(opts.Key)
	}

	if err = a.Writer.Write(ctx, topic, key, val, headers); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("kafka publish to %q: %w", topic, errors.Join(berr.ErrPublishFailed, err))
	}

	return nil
}

// Close closes the client created by NewWithKgo. It is a no-op for injected writers.
func (a *Adapter) Close() error {
	if a.closer != nil {
		a.closer()
		a.closer = nil
	}

	return nil
}

func topicForEvent(e cbus.IntegrationEvent, o cbus.PublishOptions) string {
	if o.TopicOverride != "" {
		return o.TopicOverride
	}

	return e.Topic()
}

func publishHeaders(o cbus.PublishOptions) map[string]string {
	h := make(map[string]string, len(o.Headers)+1)
	for k, v := range o.Headers {
		h[k] = v
	}

	return h
}
