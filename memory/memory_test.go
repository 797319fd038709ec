package memory

import (
	"context"
	"testing"

	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
	"github.com/next-trace/scg-saas-dispatch/provider"
	"github.com/next-trace/scg-saas-dispatch/servicebus"
)

type testCmd struct{ cbus.BaseCommand }

type testQry struct{ cbus.BaseQuery[string] }

type testEvt struct{ cbus.BaseEvent }

type testOut struct{}

func (testOut) Topic() string { return "out" }

type testCmdHandler struct{ calls *int }

func (h testCmdHandler) Handle(context.Context, testCmd) error {
	*h.calls++
	return nil
}

type testQryHandler struct{}

func (testQryHandler) Handle(context.Context, testQry) (string, error) { return "ok", nil }

func TestNewMemoryBus_BasicFlow(t *testing.T) {
	reg := provider.New()

	cmdCount := 0
	if err := provider.RegisterCommand[testCmd](reg, testCmdHandler{calls: &cmdCount}); err != nil {
		t.Fatalf("bind command: %v", err)
	}

	if err := provider.RegisterQuery[testQry, string](reg, testQryHandler{}); err != nil {
		t.Fatalf("bind query: %v", err)
	}

	b, pub, cleanup := New(reg, nil, servicebus.WithEmitterOptions(servicebus.WithSequentialDelivery()))
	defer cleanup()

	ctx := t.Context()

	if err := servicebus.Execute(ctx, b, testCmd{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if cmdCount != 1 {
		t.Fatalf("expected cmdCount=1 got %d", cmdCount)
	}

	res, err := servicebus.Ask[string](ctx, b, testQry{})
	if err != nil || res != "ok" {
		t.Fatalf("ask: %q %v", res, err)
	}

	evtCount := 0
	servicebus.OnAll(b.Emitter(), func(context.Context, testEvt) error {
		evtCount++
		return nil
	})

	b.Publish(ctx, testEvt{BaseEvent: cbus.NewBaseEvent()})

	if evtCount != 1 {
		t.Fatalf("expected evtCount=1 got %d", evtCount)
	}

	if err := b.PublishIntegration(ctx, testOut{}, cbus.PublishOptions{Key: "k"}); err != nil {
		t.Fatalf("publish integration: %v", err)
	}

	if msgs := pub.Messages(); len(msgs) != 1 || msgs[0].Topic != "out" {
		t.Fatalf("messages=%+v", msgs)
	}
}
