package servicebus

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
)

// Subscriber registers its subscriptions on an Emitter. Emitter.Discover resolves every
// registered Subscriber from a bus.DependencyProvider.
type Subscriber interface {
	Subscribe(em *Emitter)
}

var subscriberType = reflect.TypeOf((*Subscriber)(nil)).Elem()

type subscription struct {
	id      uint64
	name    string
	filter  func(cbus.DomainEvent) bool
	consume func(ctx context.Context, e cbus.DomainEvent) error
}

// EmitterOption configures an Emitter instance.
type EmitterOption func(*Emitter)

// WithSequentialDelivery runs accepted consumers one after another in registration order.
// By default each accepted consumer runs on its own goroutine.
func WithSequentialDelivery() EmitterOption {
	return func(em *Emitter) { em.sequential = true }
}

// WithErrorHandler observes consumer failures. It never changes delivery.
func WithErrorHandler(fn func(ctx context.Context, e cbus.DomainEvent, err error)) EmitterOption {
	return func(em *Emitter) { em.onError = fn }
}

// WithEmitterLogger sets the logger used for isolated consumer failures.
func WithEmitterLogger(l *slog.Logger) EmitterOption {
	return func(em *Emitter) { em.logger = l }
}

// Emitter maps event types to ordered (filter, consumer) subscriptions.
// Publish isolates every consumer: errors and panics are logged, never propagated.
type Emitter struct {
	mu   sync.RWMutex
	subs map[reflect.Type][]subscription
	seq  uint64

	sequential bool
	onError    func(ctx context.Context, e cbus.DomainEvent, err error)
	logger     *slog.Logger
}

var _ cbus.DomainPublisher = (*Emitter)(nil)

// NewEmitter constructs an empty Emitter.
func NewEmitter(opts ...EmitterOption) *Emitter {
	em := &Emitter{subs: make(map[reflect.Type][]subscription)}
	for _, opt := range opts {
		opt(em)
	}

	if em.logger == nil {
		em.logger = slog.Default()
	}

	return em
}

// Subscription identifies a registered (filter, consumer) pair.
type Subscription struct {
	em  *Emitter
	typ reflect.Type
	id  uint64
}

// Cancel removes the subscription. Publishes already in flight may still deliver to it.
func (s Subscription) Cancel() {
	if s.em == nil {
		return
	}

	s.em.mu.Lock()
	defer s.em.mu.Unlock()

	subs := s.em.subs[s.typ]
	for i, sub := range subs {
		if sub.id == s.id {
			s.em.subs[s.typ] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// On registers consumer for events of type E accepted by filter. A nil filter accepts all.
// A concrete E matches published events of exactly that runtime type, so publish events by
// value when E is a struct. An interface E matches every event implementing it.
func On[E cbus.DomainEvent](em *Emitter, filter func(E) bool, consumer func(ctx context.Context, e E) error) Subscription {
	t := reflect.TypeOf((*E)(nil)).Elem()

	sub := subscription{
		name: fmt.Sprintf("%s#%T", cbus.TypeName(t), consumer),
		filter: func(v cbus.DomainEvent) bool {
			e, ok := v.(E)
			return ok && (filter == nil || filter(e))
		},
		consume: func(ctx context.Context, v cbus.DomainEvent) error {
			return consumer(ctx, v.(E))
		},
	}

	em.mu.Lock()
	defer em.mu.Unlock()

	em.seq++
	sub.id = em.seq
	em.subs[t] = append(em.subs[t], sub)

	return Subscription{em: em, typ: t, id: sub.id}
}

// OnAll registers consumer for every event of type E.
func OnAll[E cbus.DomainEvent](em *Emitter, consumer func(ctx context.Context, e E) error) Subscription {
	return On[E](em, nil, consumer)
}

// matching collects the subscriptions for events of runtime type rt in registration order.
// The caller holds em.mu.
func (em *Emitter) matching(rt reflect.Type) []subscription {
	subs := append([]subscription(nil), em.subs[rt]...)

	var widened bool

	for t, ts := range em.subs {
		if t != rt && t.Kind() == reflect.Interface && rt.Implements(t) {
			subs = append(subs, ts...)
			widened = true
		}
	}

	if widened {
		slices.SortFunc(subs, func(a, b subscription) int { return cmp.Compare(a.id, b.id) })
	}

	return subs
}

// Publish delivers e to every subscription of its runtime type whose filter accepts it.
// Filters run in registration order; Publish returns once every accepted consumer was attempted.
func (em *Emitter) Publish(ctx context.Context, e cbus.DomainEvent) {
	if e == nil {
		return
	}

	em.mu.RLock()
	subs := em.matching(reflect.TypeOf(e))
	em.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	var wg sync.WaitGroup

	for _, sub := range subs {
		if !em.accepts(ctx, sub, e) {
			continue
		}

		if em.sequential {
			em.deliver(ctx, sub, e)
			continue
		}

		wg.Add(1)

		go func(sub subscription) {
			defer wg.Done()
			em.deliver(ctx, sub, e)
		}(sub)
	}

	wg.Wait()
}

func (em *Emitter) accepts(ctx context.Context, sub subscription, e cbus.DomainEvent) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			em.fail(ctx, sub, e, fmt.Errorf("filter panic: %v", r))
			ok = false
		}
	}()

	return sub.filter(e)
}

func (em *Emitter) deliver(ctx context.Context, sub subscription, e cbus.DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			em.fail(ctx, sub, e, fmt.Errorf("consumer panic: %v", r))
		}
	}()

	if err := sub.consume(ctx, e); err != nil {
		em.fail(ctx, sub, e, err)
	}
}

func (em *Emitter) fail(ctx context.Context, sub subscription, e cbus.DomainEvent, err error) {
	em.logger.WarnContext(ctx, "event consumer failed",
		"event", cbus.NameOf(e),
		"event_id", e.EventID().String(),
		"subscription", sub.name,
		"err", err,
	)

	if em.onError != nil {
		em.onError(ctx, e, err)
	}
}

// Discover resolves every Subscriber registered in p and lets it subscribe.
// Subscribers must be registered under their own type name.
func (em *Emitter) Discover(p cbus.DependencyProvider) error {
	for _, t := range p.SubTypesOf(subscriberType) {
		inst, err := p.SingleInstanceOf(cbus.TypeName(t))
		if err != nil {
			return fmt.Errorf("discover %s: %w", cbus.TypeName(t), err)
		}

		s, ok := inst.(Subscriber)
		if !ok {
			continue
		}

		s.Subscribe(em)
	}

	return nil
}

// Len returns the number of subscriptions an event like e would be offered to.
func (em *Emitter) Len(e cbus.DomainEvent) int {
	em.mu.RLock()
	defer em.mu.RUnlock()

	return len(em.matching(reflect.TypeOf(e)))
}
