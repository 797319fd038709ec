package bus

import "context"

// CommandHandler handles commands of type C.
// Implementations must be safe for concurrent use by multiple goroutines.
type CommandHandler[C Command] interface {
	Handle(ctx context.Context, c C) error
}

// CommandWithResultHandler handles commands of type C that yield R.
type CommandWithResultHandler[C CommandWithResult[R], R any] interface {
	Handle(ctx context.Context, c C) (R, error)
}

// QueryHandler handles queries of type Q and returns a result of type R.
// Implementations must be safe for concurrent use by multiple goroutines.
type QueryHandler[Q Query[R], R any] interface {
	Handle(ctx context.Context, q Q) (R, error)
}

// RequestHandler is the untyped form the mediator invokes. Typed handlers are
// adapted to it when they are registered with a DependencyProvider.
type RequestHandler interface {
	HandleRequest(ctx context.Context, request any) (any, error)
}

// RequestHandlerFunc adapts a function to RequestHandler.
type RequestHandlerFunc func(ctx context.Context, request any) (any, error)

func (f RequestHandlerFunc) HandleRequest(ctx context.Context, request any) (any, error) {
	return f(ctx, request)
}
