// Package ratelimit implements per-identifier token buckets selected by strategy.
//
// TokenBucketLimiter decides; BucketStore owns the bucket state (MemoryBucketStore keeps one
// golang.org/x/time/rate limiter per identifier and strategy, evicted after an idle TTL).
// Service wraps the limiter and publishes a RateLimitExceededEvent on every denial so alerting
// stays off the decision path. AlertForwarder turns those events into integration events for
// an external broker, publishing in the background with a bounded timeout.
//
// The HTTP enforcement lives in ratelimit/filter; decision counters in ratelimit/stats.
package ratelimit
