package ratelimit

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownStrategy is returned for a strategy with no configured bucket.
var ErrUnknownStrategy = errors.New("ratelimit: unknown strategy")

// Limiter decides whether an identifier may proceed under a strategy.
type Limiter interface {
	ConsumeToken(ctx context.Context, identifier string, s Strategy) (Result, error)
	Config(s Strategy) (BucketConfig, error)
}

// TokenBucketLimiter keys a token bucket by identifier and strategy. Safe for concurrent use.
type TokenBucketLimiter struct {
	store      BucketStore
	strategies Strategies
}

var _ Limiter = (*TokenBucketLimiter)(nil)

// NewTokenBucketLimiter validates strategies and binds them to store.
// A nil store gets a fresh MemoryBucketStore; nil strategies get DefaultStrategies.
func NewTokenBucketLimiter(store BucketStore, strategies Strategies) (*TokenBucketLimiter, error) {
	if store == nil {
		store = NewMemoryBucketStore()
	}

	if strategies == nil {
		strategies = DefaultStrategies()
	}

	if err := strategies.Validate(); err != nil {
		return nil, err
	}

	cp := make(Strategies, len(strategies))
	for k, v := range strategies {
		cp[k] = v
	}

	return &TokenBucketLimiter{store: store, strategies: cp}, nil
}

// ConsumeToken takes one token from the (identifier, strategy) bucket.
func (l *TokenBucketLimiter) ConsumeToken(ctx context.Context, identifier string, s Strategy) (Result, error) {
	cfg, err := l.Config(s)
	if err != nil {
		return Result{}, err
	}

	res, err := l.store.Take(ctx, bucketKey(identifier, s), cfg)
	if err != nil {
		return Result{}, fmt.Errorf("take token for %s: %w", identifier, err)
	}

	return res, nil
}

// Config returns the bucket configured for s.
func (l *TokenBucketLimiter) Config(s Strategy) (BucketConfig, error) {
	cfg, ok := l.strategies[s]
	if !ok {
		return BucketConfig{}, fmt.Errorf("%w: %s", ErrUnknownStrategy, s)
	}

	return cfg, nil
}

func bucketKey(identifier string, s Strategy) string {
	return s.String() + "|" + identifier
}
