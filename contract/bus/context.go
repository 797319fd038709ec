package bus

import "context"

// Context is re-exported for convenience in handler signatures.
type Context = context.Context

// CorrelationHeader carries the correlation id across process boundaries.
const CorrelationHeader = "x-correlation-id"

type correlationKey struct{}

// WithCorrelationID returns a context carrying id for header propagation.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id stored by WithCorrelationID, if any.
func CorrelationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationKey{}).(string)
	return id, ok && id != ""
}

// HeaderPropagator abstracts injecting tracing context into headers.
// Implementors should mutate the provided headers map by inserting keys that
// carry the context across process boundaries. Implementations must be safe for concurrent use.
type HeaderPropagator interface {
	Inject(ctx context.Context, headers map[string]string)
}

// NopHeaderPropagator is a no-op implementation useful for tests or when tracing is disabled.
type NopHeaderPropagator struct{}

func (NopHeaderPropagator) Inject(context.Context, map[string]string) {}

// CorrelationPropagator copies the context correlation id into CorrelationHeader
// unless the caller already set one.
type CorrelationPropagator struct{}

func (CorrelationPropagator) Inject(ctx context.Context, headers map[string]string) {
	if ctx == nil || headers == nil {
		return
	}

	if _, set := headers[CorrelationHeader]; set {
		return
	}

	if id, ok := CorrelationID(ctx); ok {
		headers[CorrelationHeader] = id
	}
}
