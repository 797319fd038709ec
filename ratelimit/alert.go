package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
	"github.com/next-trace/scg-saas-dispatch/servicebus"
)

// AlertTopic is the default topic of RateLimitAlert.
const AlertTopic = "ratelimit.exceeded"

// RateLimitAlert is the integration form of RateLimitExceededEvent.
type RateLimitAlert struct {
	EventID       string    `json:"eventId"`
	OccurredAt    time.Time `json:"occurredAt"`
	Identifier    string    `json:"identifier"`
	Endpoint      string    `json:"endpoint"`
	Strategy      string    `json:"strategy"`
	WindowSeconds int64     `json:"windowSeconds"`
	ResetAt       time.Time `json:"resetAt"`
}

func (RateLimitAlert) Topic() string { return AlertTopic }

// Alert delivery defaults.
const (
	DefaultAlertTimeout     = 2 * time.Second
	DefaultAlertMaxInFlight = 64
)

// AlertForwarder subscribes to RateLimitExceededEvent and forwards each one to an
// integration EventPublisher in the background. Each send is bounded by a timeout that
// ignores the caller's cancellation. At most the configured number of sends run at once;
// alerts beyond that are dropped and logged.
type AlertForwarder struct {
	pub      cbus.EventPublisher
	topic    string
	logger   *slog.Logger
	timeout  time.Duration
	limit    int
	inFlight errgroup.Group
}

var _ servicebus.Subscriber = (*AlertForwarder)(nil)

// AlertOption configures an AlertForwarder.
type AlertOption func(*AlertForwarder)

// WithAlertTimeout bounds a single broker publish.
func WithAlertTimeout(d time.Duration) AlertOption {
	return func(f *AlertForwarder) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithAlertMaxInFlight caps concurrent broker publishes.
func WithAlertMaxInFlight(n int) AlertOption {
	return func(f *AlertForwarder) {
		if n > 0 {
			f.limit = n
		}
	}
}

// NewAlertForwarder forwards to pub under topic; an empty topic means AlertTopic.
func NewAlertForwarder(pub cbus.EventPublisher, topic string, logger *slog.Logger, opts ...AlertOption) *AlertForwarder {
	if logger == nil {
		logger = slog.Default()
	}

	f := &AlertForwarder{pub: pub, topic: topic, logger: logger, timeout: DefaultAlertTimeout, limit: DefaultAlertMaxInFlight}
	for _, opt := range opts {
		opt(f)
	}

	f.inFlight.SetLimit(f.limit)

	return f
}

func (f *AlertForwarder) Subscribe(em *servicebus.Emitter) {
	servicebus.OnAll(em, f.Forward)
}

// Forward schedules e as a RateLimitAlert keyed by identifier and returns without waiting
// for the broker. The event id doubles as the correlation id unless ctx already carries one.
func (f *AlertForwarder) Forward(ctx context.Context, e RateLimitExceededEvent) error {
	if f.pub == nil {
		return nil
	}

	if _, ok := cbus.CorrelationID(ctx); !ok {
		ctx = cbus.WithCorrelationID(ctx, e.EventID().String())
	}

	corr, _ := cbus.CorrelationID(ctx)

	alert := RateLimitAlert{
		EventID:       e.EventID().String(),
		OccurredAt:    e.OccurredAt(),
		Identifier:    e.Identifier,
		Endpoint:      e.Endpoint,
		Strategy:      e.Strategy.String(),
		WindowSeconds: int64(e.Window / time.Second),
		ResetAt:       e.ResetAt,
	}

	opts := cbus.PublishOptions{
		TopicOverride: f.topic,
		Key:           e.Identifier,
		Headers:       map[string]string{cbus.CorrelationHeader: corr},
	}

	started := f.inFlight.TryGo(func() error {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
		defer cancel()

		if err := f.pub.PublishIntegration(pctx, alert, opts); err != nil {
			f.logger.WarnContext(pctx, "rate limit alert not forwarded",
				"identifier", e.Identifier, "event_id", alert.EventID, "error", err)

			return nil
		}

		f.logger.DebugContext(pctx, "rate limit alert forwarded", "identifier", e.Identifier, "event_id", alert.EventID)

		return nil
	})
	if !started {
		f.logger.WarnContext(ctx, "rate limit alert dropped", "identifier", e.Identifier, "event_id", alert.EventID)
	}

	return nil
}

// Wait blocks until every scheduled alert has been published or timed out.
func (f *AlertForwarder) Wait() {
	_ = f.inFlight.Wait()
}
