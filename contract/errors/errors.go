package errors

// Error codes for the bus contracts. Keep stable; used across adapters and bus.
const (
	ErrCodeHandlerExists          = "servicebus.handler_exists"
	ErrCodeHandlerNotFound        = "servicebus.handler_not_found"
	ErrCodeHandlerTypeMismatch    = "servicebus.handler_type_mismatch"
	ErrCodeCommandExecutionFailed = "servicebus.command_execution_failed"
	ErrCodeQueryExecutionFailed   = "servicebus.query_execution_failed"
	ErrCodeAsyncNotConfigured     = "servicebus.async_not_configured"
	ErrCodePublishFailed          = "servicebus.publish_failed"
	ErrCodeSerializationFailed    = "servicebus.serialization_failed"
	ErrCodeRateLimitExceeded      = "ratelimit.exceeded"
	ErrCodeValidation             = "domain.validation"
	ErrCodeConflict               = "domain.conflict"
	ErrCodeNotFound               = "domain.not_found"
	ErrCodeUnauthorized           = "domain.unauthorized"
)

// Code returns an error value that carries only a code string.
// It implements error by returning the code string in Error().
func Code(code string) error { return codedError(code) }

type codedError string

func (e codedError) Error() string { return string(e) }

var (
	ErrHandlerExists          = Code(ErrCodeHandlerExists)
	ErrHandlerNotFound        = Code(ErrCodeHandlerNotFound)
	ErrHandlerTypeMismatch    = Code(ErrCodeHandlerTypeMismatch)
	ErrCommandExecutionFailed = Code(ErrCodeCommandExecutionFailed)
	ErrQueryExecutionFailed   = Code(ErrCodeQueryExecutionFailed)
	ErrAsyncNotConfigured     = Code(ErrCodeAsyncNotConfigured)
	ErrPublishFailed          = Code(ErrCodePublishFailed)
	ErrSerializationFailed    = Code(ErrCodeSerializationFailed)
	ErrRateLimitExceeded      = Code(ErrCodeRateLimitExceeded)

	// Domain sentinels are wrapped by handlers to select a 4xx response.
	ErrValidation   = Code(ErrCodeValidation)
	ErrConflict     = Code(ErrCodeConflict)
	ErrNotFound     = Code(ErrCodeNotFound)
	ErrUnauthorized = Code(ErrCodeUnauthorized)
)
