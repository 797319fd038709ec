package servicebus

import (
	"context"
	"log/slog"
	"time"

	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
)

// LoggingMiddleware logs every request with its duration. Failures are logged at warn level;
// the error itself is returned unchanged.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, request any) (any, error) {
			start := time.Now()
			res, err := next(ctx, request)

			attrs := []any{"request", cbus.NameOf(request), "duration", time.Since(start)}
			if err != nil {
				logger.WarnContext(ctx, "request failed", append(attrs, "err", err)...)
				return res, err
			}

			logger.DebugContext(ctx, "request handled", attrs...)

			return res, nil
		}
	}
}

// CorrelationMiddleware stamps a correlation id on the context when none is present,
// so integration events published by handlers carry it.
func CorrelationMiddleware(newID func() string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, request any) (any, error) {
			if _, ok := cbus.CorrelationID(ctx); !ok && newID != nil {
				ctx = cbus.WithCorrelationID(ctx, newID())
			}

			return next(ctx, request)
		}
	}
}
