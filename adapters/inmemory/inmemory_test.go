package inmemory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/next-trace/scg-saas-dispatch/adapters/inmemory"
	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
)

type integ struct{ T string }

func (i integ) Topic() string { return i.T }

func TestInmemory_PublishRecordsTopicKeyAndHeaders(t *testing.T) {
	var seen []inmemory.Message

	p := inmemory.New(func(_ context.Context, m inmemory.Message) error {
		seen = append(seen, m)
		return nil
	})

	ctx := cbus.WithCorrelationID(t.Context(), "corr-1")

	if err := p.PublishIntegration(ctx, integ{T: "topic"}, cbus.PublishOptions{Key: "k", Headers: map[string]string{"a": "b"}}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if err := p.PublishIntegration(t.Context(), integ{T: "topic"}, cbus.PublishOptions{TopicOverride: "other"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msgs := p.Messages()
	if len(msgs) != 2 || len(seen) != 2 {
		t.Fatalf("want 2 messages, got %d/%d", len(msgs), len(seen))
	}

	if m := msgs[0]; m.Topic != "topic" || m.Key != "k" || m.Headers["a"] != "b" || m.Headers[cbus.CorrelationHeader] != "corr-1" {
		t.Fatalf("first message: %+v", m)
	}

	if msgs[1].Topic != "other" {
		t.Fatalf("topic override ignored: %q", msgs[1].Topic)
	}
}

func TestInmemory_SinkErrorIsReturned(t *testing.T) {
	boom := errors.New("boom")
	p := inmemory.New(func(context.Context, inmemory.Message) error { return boom })

	if err := p.PublishIntegration(t.Context(), integ{T: "t"}, cbus.PublishOptions{}); !errors.Is(err, boom) {
		t.Fatalf("want sink error, got %v", err)
	}
}

func TestInmemory_ConcurrentSafety(t *testing.T) {
	p := inmemory.New()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = p.PublishIntegration(t.Context(), integ{T: "t"}, cbus.PublishOptions{})
		}()
	}

	wg.Wait()

	if n := len(p.Messages()); n != 50 {
		t.Fatalf("events=%d", n)
	}
}
