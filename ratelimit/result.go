package ratelimit

import (
	"fmt"
	"time"

	berr "github.com/next-trace/scg-saas-dispatch/contract/errors"
)

// Result is the outcome of one rate-limit check: either allowed with the tokens left,
// or denied with the time until the next token. The zero value is a denial.
type Result struct {
	allowed    bool
	remaining  int64
	retryAfter time.Duration
}

// Allowed builds an allowing Result. Negative remaining counts are clamped to zero.
func Allowed(remaining int64) Result {
	return Result{allowed: true, remaining: max(remaining, 0)}
}

// Denied builds a denying Result. retryAfter is always positive.
func Denied(retryAfter time.Duration) Result {
	return Result{retryAfter: max(retryAfter, time.Millisecond)}
}

func (r Result) IsAllowed() bool { return r.allowed }

// Remaining is the number of tokens left after an allowed check, zero when denied.
func (r Result) Remaining() int64 { return r.remaining }

// RetryAfter is the wait before a denied caller can succeed, zero when allowed.
func (r Result) RetryAfter() time.Duration { return r.retryAfter }

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (r Result) RetryAfterSeconds() int64 {
	if r.allowed {
		return 0
	}

	return int64((r.retryAfter + time.Second - 1) / time.Second)
}

// Err returns nil for an allowed Result and a *errors.RateLimitExceededError otherwise.
func (r Result) Err(identifier string) error {
	if r.allowed {
		return nil
	}

	return &berr.RateLimitExceededError{Identifier: identifier, RetryAfter: r.retryAfter}
}

func (r Result) String() string {
	if r.allowed {
		return fmt.Sprintf("Allowed(%d)", r.remaining)
	}

	return fmt.Sprintf("Denied(%s)", r.retryAfter)
}
