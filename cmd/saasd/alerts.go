package main

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/next-trace/scg-saas-dispatch/adapters/kafka"
	natsadapter "github.com/next-trace/scg-saas-dispatch/adapters/nats"
	"github.com/next-trace/scg-saas-dispatch/adapters/rabbitmq"
	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
	"github.com/next-trace/scg-saas-dispatch/internal/config"
)

// newAlertPublisher selects the integration publisher for rate-limit alerts.
// The "none" backend returns a nil publisher and no alerts are forwarded.
func newAlertPublisher(cfg config.AlertsConfig, logger *slog.Logger) (cbus.EventPublisher, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "log":
		return logPublisher{logger: logger}, nil
	case "nats":
		ad, err := natsadapter.NewWithNATS(natsadapter.Config{
			URL:           cfg.NATS.URL,
			Name:          "saasd",
			SubjectPrefix: cfg.NATS.SubjectPrefix,
		})
		if err != nil {
			return nil, err
		}

		return ad, nil
	case "kafka":
		ad, err := kafka.NewWithKgo(kafka.Config{
			Brokers:     cfg.Kafka.Brokers,
			ClientID:    cfg.Kafka.ClientID,
			Acks:        cfg.Kafka.Acks,
			Compression: cfg.Kafka.Compression,
		})
		if err != nil {
			return nil, err
		}

		return ad, nil
	case "rabbitmq":
		ad, err := rabbitmq.NewWithAMQPConn(rabbitmq.Config{
			URL:      cfg.RabbitMQ.URL,
			Exchange: cfg.RabbitMQ.Exchange,
		})
		if err != nil {
			return nil, err
		}

		return ad, nil
	default:
		return nil, fmt.Errorf("unknown alerts backend %q", cfg.Backend)
	}
}

// logPublisher writes integration events to the process log.
type logPublisher struct{ logger *slog.Logger }

func (p logPublisher) PublishIntegration(ctx context.Context, e cbus.IntegrationEvent, opts cbus.PublishOptions) error {
	topic := e.Topic()
	if opts.TopicOverride != "" {
		topic = opts.TopicOverride
	}

	headers := maps.Clone(opts.Headers)
	if headers == nil {
		headers = map[string]string{}
	}

	cbus.CorrelationPropagator{}.Inject(ctx, headers)

	p.logger.InfoContext(ctx, "integration event",
		"topic", topic,
		"key", opts.Key,
		"headers", headers,
		"event", e,
	)

	return nil
}
