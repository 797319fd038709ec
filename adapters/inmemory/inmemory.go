// Package inmemory provides an in-process integration publisher for tests, local runs
// and single-node deployments that only need alerts in the log.
package inmemory

import (
	"context"
	"sync"

	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
)

// Message is one recorded publication.
type Message struct {
	Topic   string
	Key     string
	Headers map[string]string
	Event   cbus.IntegrationEvent
}

// Sink receives every published message synchronously.
type Sink func(ctx context.Context, m Message) error

// Publisher is a thread-safe in-memory cbus.EventPublisher.
type Publisher struct {
	mu       sync.Mutex
	messages []Message
	sinks    []Sink
	prop     cbus.HeaderPropagator
}

var _ cbus.EventPublisher = (*Publisher)(nil)

// New creates an empty Publisher that stamps the correlation header.
func New(sinks ...Sink) *Publisher {
	return &Publisher{sinks: sinks, prop: cbus.CorrelationPropagator{}}
}

func (p *Publisher) PublishIntegration(ctx context.Context, e cbus.IntegrationEvent, opts cbus.PublishOptions) error {
	topic := e.Topic()
	if opts.TopicOverride != "" {
		topic = opts.TopicOverride
	}

	headers := make(map[string]string, len(opts.Headers)+1)
	for k, v := range opts.Headers {
		headers[k] = v
	}

	if p.prop != nil {
		p.prop.Inject(ctx, headers)
	}

	m := Message{Topic: topic, Key: opts.Key, Headers: headers, Event: e}

	p.mu.Lock()
	p.messages = append(p.messages, m)
	sinks := p.sinks
	p.mu.Unlock()

	for _, s := range sinks {
		if err := s(ctx, m); err != nil {
			return err
		}
	}

	return nil
}

// Messages returns a copy of everything published so far.
func (p *Publisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]Message(nil), p.messages...)
}
