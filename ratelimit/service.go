package ratelimit

import (
	"context"
	"log/slog"
	"time"

	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
)

// RateLimitExceededEvent is published for every denied check.
type RateLimitExceededEvent struct {
	cbus.BaseEvent

	Identifier string
	Endpoint   string
	Window     time.Duration
	Strategy   Strategy
	ResetAt    time.Time
}

// Service applies a Limiter for an endpoint and reports denials as domain events.
type Service struct {
	limiter Limiter
	events  cbus.DomainPublisher
	logger  *slog.Logger
	now     func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService wires limiter to events. events may be nil, in which case denials are only logged.
func NewService(limiter Limiter, events cbus.DomainPublisher, opts ...ServiceOption) *Service {
	s := &Service{limiter: limiter, events: events, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// ConsumeToken checks identifier against the BUSINESS bucket.
func (s *Service) ConsumeToken(ctx context.Context, identifier, endpoint string) (Result, error) {
	return s.ConsumeTokenWithStrategy(ctx, identifier, endpoint, StrategyBusiness)
}

// ConsumeTokenWithStrategy checks identifier against the bucket of strategy. A denial is
// published as a RateLimitExceededEvent before the Result is returned.
func (s *Service) ConsumeTokenWithStrategy(ctx context.Context, identifier, endpoint string, strategy Strategy) (Result, error) {
	res, err := s.limiter.ConsumeToken(ctx, identifier, strategy)
	if err != nil {
		return Result{}, err
	}

	if res.IsAllowed() {
		return res, nil
	}

	s.logger.InfoContext(ctx, "rate limit exceeded",
		"identifier", identifier,
		"endpoint", endpoint,
		"strategy", strategy.String(),
		"retry_after", res.RetryAfter(),
	)

	if s.events == nil {
		return res, nil
	}

	var window time.Duration
	if cfg, err := s.limiter.Config(strategy); err == nil {
		window = cfg.RefillPeriod
	}

	ev := RateLimitExceededEvent{
		BaseEvent:  cbus.NewBaseEvent(),
		Identifier: identifier,
		Endpoint:   endpoint,
		Window:     window,
		Strategy:   strategy,
		ResetAt:    s.now().Add(res.RetryAfter()).UTC(),
	}

	s.events.Publish(ctx, ev)

	return res, nil
}
