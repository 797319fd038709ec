package servicebus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
	berr "github.com/next-trace/scg-saas-dispatch/contract/errors"
)

// HandlerFunc is the untyped request invocation the middleware chain wraps.
type HandlerFunc func(ctx context.Context, request any) (any, error)

// Middleware wraps request handler execution. Middlewares are executed in registration order.
type Middleware func(next HandlerFunc) HandlerFunc

// MediatorOption configures a Mediator instance.
type MediatorOption func(*Mediator)

// WithMiddleware registers global request middleware.
func WithMiddleware(mw ...Middleware) MediatorOption {
	return func(m *Mediator) { m.mw = append(m.mw, mw...) }
}

// WithMediatorLogger sets the logger used for wiring diagnostics.
func WithMediatorLogger(l *slog.Logger) MediatorOption {
	return func(m *Mediator) { m.logger = l }
}

// Mediator resolves the single handler of a request by naming convention and invokes it.
// It imposes no locking around handlers and never retries.
//
// Mediator is concurrency-safe and contains no global state.
type Mediator struct {
	mu       sync.RWMutex
	provider cbus.DependencyProvider
	mw       []Middleware
	logger   *slog.Logger
}

var _ cbus.Mediator = (*Mediator)(nil)

// NewMediator constructs a Mediator resolving handlers through p.
func NewMediator(p cbus.DependencyProvider, opts ...MediatorOption) *Mediator {
	m := &Mediator{provider: p}
	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = slog.Default()
	}

	return m
}

// Use appends global middleware after construction.
func (m *Mediator) Use(mw ...Middleware) {
	m.mu.Lock()
	m.mw = append(m.mw, mw...)
	m.mu.Unlock()
}

// Send dispatches request to its handler and returns the handler's result unchanged.
// Commands without result yield nil.
func (m *Mediator) Send(ctx context.Context, request any) (any, error) {
	return m.send(ctx, request)
}

// SendWithMiddleware dispatches request with additional per-call middleware.
func (m *Mediator) SendWithMiddleware(ctx context.Context, request any, mws ...Middleware) (any, error) {
	return m.send(ctx, request, mws...)
}

func (m *Mediator) send(ctx context.Context, request any, mws ...Middleware) (any, error) {
	h, err := m.resolve(request)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	chain := make([]Middleware, 0, len(m.mw)+len(mws))
	chain = append(chain, m.mw...)
	m.mu.RUnlock()

	chain = append(chain, mws...)

	// Build chain so the first registered middleware runs first
	final := invoke(h)
	for i := len(chain) - 1; i >= 0; i-- {
		final = chain[i](final)
	}

	res, err := final(ctx, request)
	if err != nil {
		return nil, wrapExecution(request, err)
	}

	return res, nil
}

func (m *Mediator) resolve(request any) (cbus.RequestHandler, error) {
	typ := cbus.NameOf(request)
	name := cbus.HandlerName(request)

	if request == nil || m.provider == nil {
		return nil, &berr.HandlerNotFoundError{RequestType: typ, Handler: name}
	}

	inst, err := m.provider.SingleInstanceOf(name)
	if err != nil {
		if errors.Is(err, berr.ErrHandlerNotFound) {
			m.logger.Error("no handler registered", "request", typ, "handler", name)
			return nil, &berr.HandlerNotFoundError{RequestType: typ, Handler: name}
		}

		return nil, fmt.Errorf("resolve %s: %w", name, err)
	}

	h, ok := inst.(cbus.RequestHandler)
	if !ok {
		m.logger.Error("handler has wrong type", "request", typ, "handler", name, "type", fmt.Sprintf("%T", inst))
		return nil, &berr.HandlerTypeMismatchError{RequestType: typ, Handler: name}
	}

	return h, nil
}

func invoke(h cbus.RequestHandler) HandlerFunc {
	return func(ctx context.Context, request any) (res any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()

		return h.HandleRequest(ctx, request)
	}
}

// wrapExecution selects the execution error by the category of request. A type
// mismatch raised by the adapter for this very request is a wiring defect and stays
// unwrapped; any other failure, including one from a nested dispatch, becomes the Cause.
func wrapExecution(request any, err error) error {
	typ := cbus.NameOf(request)

	var mm *berr.HandlerTypeMismatchError
	if errors.As(err, &mm) && mm.RequestType == typ {
		return err
	}

	if cbus.IsQuery(request) {
		return &berr.QueryHandlerExecutionError{RequestType: typ, Cause: err}
	}

	return &berr.CommandHandlerExecutionError{RequestType: typ, Cause: err}
}

// Execute dispatches a command without result.
func Execute(ctx context.Context, m cbus.Mediator, cmd cbus.Command) error {
	_, err := m.Send(ctx, cmd)
	return err
}

// ExecuteWithResult dispatches a command and returns its typed result.
func ExecuteWithResult[R any](ctx context.Context, m cbus.Mediator, cmd cbus.CommandWithResult[R]) (R, error) {
	res, err := m.Send(ctx, cmd)
	return typed[R](cmd, res, err)
}

// Ask executes a query and returns its typed result.
func Ask[R any](ctx context.Context, m cbus.Mediator, q cbus.Query[R]) (R, error) {
	res, err := m.Send(ctx, q)
	return typed[R](q, res, err)
}

func typed[R any](request, res any, err error) (R, error) {
	var zero R
	if err != nil {
		return zero, err
	}

	if res == nil {
		return zero, nil
	}

	r, ok := res.(R)
	if !ok {
		return zero, fmt.Errorf("send %s: %w", cbus.NameOf(request), berr.ErrHandlerTypeMismatch)
	}

	return r, nil
}

// Chain executes commands in order and stops on the first error.
func (m *Mediator) Chain(ctx context.Context, cmds ...cbus.Command) error {
	for _, c := range cmds {
		if _, err := m.send(ctx, c); err != nil {
			return err
		}
	}

	return nil
}

// BatchOptions controls Batch execution behavior.
// OnProgress is called after each command completes (success or failure) with done and total.
// OnError is called when a command returns an error with its index, the command value, and the error.
type BatchOptions struct {
	OnProgress func(done, total int)
	OnError    func(index int, cmd cbus.Command, err error)
}

// BatchOpt configures BatchOptions.
type BatchOpt func(*BatchOptions)

// WithBatchProgress sets the progress callback.
func WithBatchProgress(fn func(done, total int)) BatchOpt {
	return func(o *BatchOptions) { o.OnProgress = fn }
}

// WithBatchOnError sets the error callback.
func WithBatchOnError(fn func(index int, cmd cbus.Command, err error)) BatchOpt {
	return func(o *BatchOptions) { o.OnError = fn }
}

// Batch executes the provided commands sequentially.
// It stops on context cancellation and returns the joined errors of failed commands.
func (m *Mediator) Batch(ctx context.Context, cmds []cbus.Command, opts ...BatchOpt) error {
	var o BatchOptions
	for _, f := range opts {
		f(&o)
	}

	total := len(cmds)

	var errs []error

	for i, c := range cmds {
		if err := ctx.Err(); err != nil { // canceled or deadline exceeded
			return errors.Join(append(errs, err)...)
		}

		_, err := m.send(ctx, c)
		if err != nil {
			if o.OnError != nil {
				o.OnError(i, c, err)
			}

			errs = append(errs, err)
		}

		if o.OnProgress != nil {
			o.OnProgress(i+1, total)
		}
	}

	return errors.Join(errs...)
}
