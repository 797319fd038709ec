package rabbitmq_test

import (
	"context"
	"errors"
	"testing"

	"github.com/next-trace/scg-saas-dispatch/adapters/rabbitmq"
	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
	berr "github.com/next-trace/scg-saas-dispatch/contract/errors"
)

type fakePublisher struct {
	calls []rabbitmq.PubMsg
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, m rabbitmq.PubMsg) error {
	f.calls = append(f.calls, m)

	return f.err
}

type integ struct{ ID string }

func (integ) Topic() string { return "ratelimit.exceeded" }

type stamp struct{}

func (stamp) Inject(_ context.Context, h map[string]string) { h["trace"] = "t-1" }

func TestRabbitMQ_PublishIntegration(t *testing.T) {
	fp := &fakePublisher{}
	ad := rabbitmq.NewWithPropagator(fp, stamp{})

	po := cbus.PublishOptions{Key: "IP:1", Headers: map[string]string{"ph": "pv"}}
	if err := ad.PublishIntegration(t.Context(), integ{ID: "1"}, po); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(fp.calls) != 1 {
		t.Fatalf("want 1, got %d", len(fp.calls))
	}

	p := fp.calls[0]
	if p.Exchange != rabbitmq.DefaultExchange || p.RoutingKey != "ratelimit.exceeded" || len(p.Body) == 0 {
		t.Fatalf("routing: %q %q", p.Exchange, p.RoutingKey)
	}

	if p.Headers["ph"] != "pv" || p.Headers["key"] != "IP:1" || p.Headers["trace"] != "t-1" {
		t.Fatalf("pub headers: %+v", p.Headers)
	}

	if _, leaked := po.Headers["trace"]; leaked {
		t.Fatalf("caller headers mutated")
	}

	if err := ad.PublishIntegration(t.Context(), integ{}, cbus.PublishOptions{TopicOverride: "alerts.auth"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if fp.calls[1].RoutingKey != "alerts.auth" {
		t.Fatalf("routing key: %s", fp.calls[1].RoutingKey)
	}
}

func TestRabbitMQ_NilPublisherError(t *testing.T) {
	ad := rabbitmq.New(nil)

	if err := ad.PublishIntegration(t.Context(), integ{}, cbus.PublishOptions{}); !errors.Is(err, berr.ErrPublishFailed) {
		t.Fatalf("expected ErrPublishFailed, got %v", err)
	}
}

func TestRabbitMQ_Publish_ErrorWrapping_And_ContextCancel(t *testing.T) {
	ad := rabbitmq.New(&fakePublisher{err: errors.New("boom")})

	if err := ad.PublishIntegration(t.Context(), integ{}, cbus.PublishOptions{}); !errors.Is(err, berr.ErrPublishFailed) {
		t.Fatalf("expected wrapped error, got %v", err)
	}

	ad2 := rabbitmq.New(&fakePublisher{err: context.Canceled})

	err := ad2.PublishIntegration(t.Context(), integ{}, cbus.PublishOptions{})
	if !errors.Is(err, context.Canceled) || errors.Is(err, berr.ErrPublishFailed) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
