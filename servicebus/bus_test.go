package servicebus_test

import (
	"context"
	"errors"
	"testing"

	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
	berr "github.com/next-trace/scg-saas-dispatch/contract/errors"
	"github.com/next-trace/scg-saas-dispatch/provider"
	"github.com/next-trace/scg-saas-dispatch/servicebus"
)

type testOut struct{ T string }

func (o testOut) Topic() string { return o.T }

type fakePub struct {
	events []cbus.IntegrationEvent
	opts   []cbus.PublishOptions
	closed int
}

func (f *fakePub) PublishIntegration(_ context.Context, e cbus.IntegrationEvent, opts cbus.PublishOptions) error {
	f.events = append(f.events, e)
	f.opts = append(f.opts, opts)

	return nil
}

func (f *fakePub) Close() error {
	f.closed++
	return nil
}

func Test_PublishIntegrationErrors(t *testing.T) {
	b := servicebus.New(provider.New(), nil, nil)

	err := b.PublishIntegration(t.Context(), testOut{T: "orders"}, cbus.PublishOptions{Key: "k"})
	if !errors.Is(err, berr.ErrAsyncNotConfigured) {
		t.Fatalf("want ErrAsyncNotConfigured, got %v", err)
	}

	pub := &fakePub{}

	b = servicebus.New(provider.New(), pub, nil)

	err = b.PublishIntegration(t.Context(), testOut{T: "orders"}, cbus.PublishOptions{Key: "k"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(pub.events) != 1 || pub.opts[0].Key != "k" {
		t.Fatalf("want 1 event, got %d", len(pub.events))
	}

	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_ = b.Close()

	if pub.closed != 1 {
		t.Fatalf("publisher closed %d times", pub.closed)
	}
}

func Test_Bus_SendAndPublish(t *testing.T) {
	reg := provider.New()

	var seen []string
	_ = provider.RegisterCommand[gCmd](reg, gCmdHandler{seen: &seen})

	b := servicebus.New(reg, nil, nil,
		servicebus.WithEmitterOptions(servicebus.WithSequentialDelivery()),
		servicebus.WithMediatorOptions(servicebus.WithMiddleware(servicebus.LoggingMiddleware(nil))),
	)

	// a consumer reaching back into the mediator, the default-workspace pattern
	servicebus.OnAll(b.Emitter(), func(ctx context.Context, e userCreated) error {
		return servicebus.Execute(ctx, b, gCmd{ID: "ws-" + e.UserID})
	})

	b.Publish(t.Context(), newUserCreated("u1", false))

	if len(seen) != 1 || seen[0] != "ws-u1" {
		t.Fatalf("seen=%v", seen)
	}

	if _, err := b.Send(t.Context(), gQry{}); !errors.Is(err, berr.ErrHandlerNotFound) {
		t.Fatalf("want ErrHandlerNotFound, got %v", err)
	}

	if b.Mediator() == nil {
		t.Fatalf("mediator accessor")
	}
}
