package provider

import (
	"context"

	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
	berr "github.com/next-trace/scg-saas-dispatch/contract/errors"
)

// CommandFunc adapts a typed command handler to bus.RequestHandler.
func CommandFunc[C cbus.Command](h cbus.CommandHandler[C]) cbus.RequestHandler {
	return cbus.RequestHandlerFunc(func(ctx context.Context, v any) (any, error) {
		c, ok := v.(C)
		if !ok {
			return nil, mismatch[C](v)
		}

		return nil, h.Handle(ctx, c)
	})
}

// CommandWithResultFunc adapts a typed command-with-result handler to bus.RequestHandler.
func CommandWithResultFunc[C cbus.CommandWithResult[R], R any](h cbus.CommandWithResultHandler[C, R]) cbus.RequestHandler {
	return cbus.RequestHandlerFunc(func(ctx context.Context, v any) (any, error) {
		c, ok := v.(C)
		if !ok {
			return nil, mismatch[C](v)
		}

		return h.Handle(ctx, c)
	})
}

// QueryFunc adapts a typed query handler to bus.RequestHandler.
func QueryFunc[Q cbus.Query[R], R any](h cbus.QueryHandler[Q, R]) cbus.RequestHandler {
	return cbus.RequestHandlerFunc(func(ctx context.Context, v any) (any, error) {
		q, ok := v.(Q)
		if !ok {
			return nil, mismatch[Q](v)
		}

		return h.Handle(ctx, q)
	})
}

func mismatch[T any](v any) error {
	return &berr.HandlerTypeMismatchError{RequestType: cbus.NameOf(v), Handler: cbus.HandlerNameFor[T]()}
}

// RegisterCommand registers h as the single handler for command type C.
// Duplicate bindings are rejected.
func RegisterCommand[C cbus.Command](r *Registry, h cbus.CommandHandler[C]) error {
	return r.RegisterAs(cbus.HandlerNameFor[C](), CommandFunc[C](h))
}

// RegisterCommandWithResult registers h as the single handler for command type C yielding R.
func RegisterCommandWithResult[C cbus.CommandWithResult[R], R any](
	r *Registry,
	h cbus.CommandWithResultHandler[C, R],
) error {
	return r.RegisterAs(cbus.HandlerNameFor[C](), CommandWithResultFunc[C, R](h))
}

// RegisterQuery registers h as the single handler for query type Q producing R.
func RegisterQuery[Q cbus.Query[R], R any](r *Registry, h cbus.QueryHandler[Q, R]) error {
	return r.RegisterAs(cbus.HandlerNameFor[Q](), QueryFunc[Q, R](h))
}
