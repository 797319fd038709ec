package rabbitmq_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/next-trace/scg-saas-dispatch/adapters/rabbitmq"
	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
)

func runRabbitMQ(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("short mode")
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-alpine",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor:   wait.ForListeningPort("5672/tcp").WithStartupTimeout(60 * time.Second),
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("rabbitmq container unavailable: %v", err)
	}

	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}

	port, err := c.MappedPort(ctx, "5672")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
}

func TestRabbitMQContainerIntegration(t *testing.T) {
	url := runRabbitMQ(t)

	ad, err := rabbitmq.NewWithAMQPConn(rabbitmq.Config{URL: url, ConnTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("adapter: %v", err)
	}
	defer func() { _ = ad.Close() }()

	// the adapter declares the exchange; publish once to make sure it exists before binding
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ad.PublishIntegration(ctx, integ{ID: "warmup"}, cbus.PublishOptions{}); err != nil {
		t.Fatalf("warmup publish: %v", err)
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		t.Fatalf("channel: %v", err)
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}

	if err := ch.QueueBind(q.Name, "ratelimit.#", rabbitmq.DefaultExchange, false, nil); err != nil {
		t.Fatalf("bind: %v", err)
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	pubCtx := cbus.WithCorrelationID(ctx, "corr-amqp")
	if err := ad.PublishIntegration(pubCtx, integ{ID: "a1"}, cbus.PublishOptions{Key: "IP:203.0.113.5"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case d := <-deliveries:
		var got integ
		if err := json.Unmarshal(d.Body, &got); err != nil || got.ID != "a1" {
			t.Fatalf("body=%s err=%v", d.Body, err)
		}

		if d.Headers[cbus.CorrelationHeader] != "corr-amqp" || d.Headers["key"] != "IP:203.0.113.5" {
			t.Fatalf("headers=%v", d.Headers)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for alert")
	}
}
