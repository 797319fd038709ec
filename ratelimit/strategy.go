package ratelimit

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Strategy selects the bucket parameters for a call site.
type Strategy int

const (
	// StrategyBusiness is the quota-style limit for regular API traffic.
	StrategyBusiness Strategy = iota
	// StrategyAuth is the stringent limit for login and registration.
	StrategyAuth
)

func (s Strategy) String() string {
	switch s {
	case StrategyAuth:
		return "AUTH"
	case StrategyBusiness:
		return "BUSINESS"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy accepts the String form, case-insensitively.
func ParseStrategy(v string) (Strategy, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "AUTH":
		return StrategyAuth, nil
	case "BUSINESS":
		return StrategyBusiness, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, v)
	}
}

// BucketConfig describes a token bucket: Capacity tokens at most, refilled continuously at
// RefillTokens per RefillPeriod.
type BucketConfig struct {
	Capacity     int
	RefillTokens int
	RefillPeriod time.Duration
}

// Validate reports whether the bucket can ever grant a token.
func (c BucketConfig) Validate() error {
	switch {
	case c.Capacity < 1:
		return fmt.Errorf("bucket capacity must be >= 1, got %d", c.Capacity)
	case c.RefillTokens < 1:
		return fmt.Errorf("bucket refill tokens must be >= 1, got %d", c.RefillTokens)
	case c.RefillPeriod <= 0:
		return fmt.Errorf("bucket refill period must be > 0, got %s", c.RefillPeriod)
	}

	return nil
}

// Limit returns the refill rate in tokens per second.
func (c BucketConfig) Limit() rate.Limit {
	return rate.Limit(float64(c.RefillTokens) / c.RefillPeriod.Seconds())
}

// Strategies maps every known strategy to its bucket.
type Strategies map[Strategy]BucketConfig

// DefaultStrategies: AUTH allows 5 attempts a minute, BUSINESS 100 calls a minute.
func DefaultStrategies() Strategies {
	return Strategies{
		StrategyAuth:     {Capacity: 5, RefillTokens: 5, RefillPeriod: time.Minute},
		StrategyBusiness: {Capacity: 100, RefillTokens: 100, RefillPeriod: time.Minute},
	}
}

// Validate checks every configured bucket.
func (s Strategies) Validate() error {
	for st, cfg := range s {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("strategy %s: %w", st, err)
		}
	}

	return nil
}
