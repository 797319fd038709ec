package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// HandlerNotFoundError reports a request type with no registered handler.
// It is always a wiring defect and is never retried.
type HandlerNotFoundError struct {
	RequestType string
	Handler     string
}

func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("%s: no %s registered for %s", ErrCodeHandlerNotFound, e.Handler, e.RequestType)
}

func (e *HandlerNotFoundError) Is(target error) bool { return target == ErrHandlerNotFound }

// HandlerTypeMismatchError reports a registered handler that cannot accept the
// dispatched request type. Only the mediator and the provider adapters raise it.
type HandlerTypeMismatchError struct {
	RequestType string
	Handler     string
}

func (e *HandlerTypeMismatchError) Error() string {
	return fmt.Sprintf("%s: %s cannot handle %s", ErrCodeHandlerTypeMismatch, e.Handler, e.RequestType)
}

func (e *HandlerTypeMismatchError) Is(target error) bool { return target == ErrHandlerTypeMismatch }

// CommandHandlerExecutionError wraps a failure raised by a command handler.
type CommandHandlerExecutionError struct {
	RequestType string
	Cause       error
}

func (e *CommandHandlerExecutionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCodeCommandExecutionFailed, e.RequestType, e.Cause)
}

func (e *CommandHandlerExecutionError) Unwrap() error { return e.Cause }

func (e *CommandHandlerExecutionError) Is(target error) bool {
	return target == ErrCommandExecutionFailed
}

// QueryHandlerExecutionError wraps a failure raised by a query handler.
type QueryHandlerExecutionError struct {
	RequestType string
	Cause       error
}

func (e *QueryHandlerExecutionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCodeQueryExecutionFailed, e.RequestType, e.Cause)
}

func (e *QueryHandlerExecutionError) Unwrap() error { return e.Cause }

func (e *QueryHandlerExecutionError) Is(target error) bool {
	return target == ErrQueryExecutionFailed
}

// RateLimitExceededError carries the retry-after of a denied rate-limit check.
// The HTTP filter converts it to a 429 response and never lets it escape.
type RateLimitExceededError struct {
	Identifier string
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("%s: %s retry after %s", ErrCodeRateLimitExceeded, e.Identifier, e.RetryAfter)
}

func (e *RateLimitExceededError) Is(target error) bool { return target == ErrRateLimitExceeded }

// HTTPStatus maps a dispatch error to a transport status code.
// Domain sentinel causes become 4xx, everything unexpected 5xx.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case stderrors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrConflict):
		return http.StatusConflict
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
