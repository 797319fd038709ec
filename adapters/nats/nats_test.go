package nats_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/next-trace/scg-saas-dispatch/adapters/nats"
	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
	berr "github.com/next-trace/scg-saas-dispatch/contract/errors"
)

type call struct {
	subject string
	data    []byte
	headers map[string]string
}

type fakeClient struct {
	calls []call
	err   error
}

func (f *fakeClient) Publish(subject string, data []byte, headers map[string]string) error {
	f.calls = append(f.calls, call{subject, data, headers})

	return f.err
}

type integ struct {
	T  string `json:"-"`
	ID string `json:"id"`
}

func (i integ) Topic() string { return i.T }

type unserializable struct{ C chan int }

func (unserializable) Topic() string { return "bad" }

func TestNATS_PublishIntegration(t *testing.T) {
	fc := &fakeClient{}
	ad := nats.New(fc)
	ad.SubjectPrefix = "saas."

	ctx := cbus.WithCorrelationID(t.Context(), "corr-9")

	po := cbus.PublishOptions{Key: "IP:1", Headers: map[string]string{"ph": "pv"}}
	if err := ad.PublishIntegration(ctx, integ{T: "ratelimit.exceeded", ID: "e1"}, po); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(fc.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(fc.calls))
	}

	p := fc.calls[0]
	if p.subject != "saas.ratelimit.exceeded" {
		t.Fatalf("subject mismatch: %s", p.subject)
	}

	if p.headers["key"] != "IP:1" || p.headers["ph"] != "pv" || p.headers[cbus.CorrelationHeader] != "corr-9" {
		t.Fatalf("publish headers mismatch: %+v", p.headers)
	}

	var body map[string]string
	if err := json.Unmarshal(p.data, &body); err != nil || body["id"] != "e1" {
		t.Fatalf("body=%s err=%v", p.data, err)
	}

	if err := ad.PublishIntegration(t.Context(), integ{T: "unused"}, cbus.PublishOptions{TopicOverride: "alerts"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if fc.calls[1].subject != "saas.alerts" {
		t.Fatalf("topic override ignored: %s", fc.calls[1].subject)
	}
}

func TestNATS_NilClientError(t *testing.T) {
	ad := nats.New(nil)

	if err := ad.PublishIntegration(t.Context(), integ{T: "t"}, cbus.PublishOptions{}); !errors.Is(err, berr.ErrPublishFailed) {
		t.Fatalf("expected ErrPublishFailed for nil client, got %v", err)
	}
}

func TestNATS_Publish_ErrorWrapping_And_ContextCancel(t *testing.T) {
	fc := &fakeClient{err: errors.New("boom")}
	ad := nats.New(fc)

	if err := ad.PublishIntegration(t.Context(), integ{T: "t"}, cbus.PublishOptions{}); !errors.Is(err, berr.ErrPublishFailed) {
		t.Fatalf("expected wrapped error, got %v", err)
	}

	if err := ad.PublishIntegration(t.Context(), unserializable{}, cbus.PublishOptions{}); !errors.Is(err, berr.ErrSerializationFailed) {
		t.Fatalf("expected serialization error, got %v", err)
	}

	// client returns context.Canceled -> propagate as-is
	ad2 := nats.New(&fakeClient{err: context.Canceled})

	err := ad2.PublishIntegration(t.Context(), integ{T: "t"}, cbus.PublishOptions{})
	if !errors.Is(err, context.Canceled) || errors.Is(err, berr.ErrPublishFailed) {
		t.Fatalf("want bare context.Canceled, got %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	fc3 := &fakeClient{}
	if err := nats.New(fc3).PublishIntegration(ctx, integ{T: "t"}, cbus.PublishOptions{}); !errors.Is(err, context.Canceled) || len(fc3.calls) != 0 {
		t.Fatalf("cancelled context must not publish: %v", err)
	}

	if err := ad.Close(); err != nil {
		t.Fatalf("close of injected client: %v", err)
	}
}
