package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps counters in Redis hashes under prefix:
//
//	<prefix>:total                 allowed/denied, never expires
//	<prefix>:minute:<yyyymmddhhmm> allowed/denied per minute, expires after ttl
//	<prefix>:route                 "<method> <route>:<allowed|denied>"
//	<prefix>:strategy              "<strategy>:<allowed|denied>"
//	<prefix>:id:<identifier>       allowed/denied, expires after ttl, opt-in
type RedisStore struct {
	rdb redis.UniversalClient

	prefix  string
	ttl     time.Duration
	bucket  string
	trackID bool
}

type RedisOption func(*RedisStore)

func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = d }
}

// WithBucket selects the time series granularity: "minute" (default) or "none".
func WithBucket(bucket string) RedisOption {
	return func(s *RedisStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithRedisTrackIdentifiers(track bool) RedisOption {
	return func(s *RedisStore) { s.trackID = track }
}

func NewRedisStore(rdb redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Record increments every counter of ev in one pipeline round trip.
func (s *RedisStore) Record(ctx context.Context, ev Event) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	if s.bucket == "minute" {
		key := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, key, field, 1)

		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
	}

	if route := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Route)); route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
	}

	if ev.Strategy != "" {
		pipe.HIncrBy(ctx, s.prefix+":strategy", ev.Strategy+":"+field, 1)
	}

	if id := strings.TrimSpace(ev.Identifier); s.trackID && id != "" {
		key := s.prefix + ":id:" + id
		pipe.HIncrBy(ctx, key, field, 1)

		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record rate limit stats: %w", err)
	}

	return nil
}

// Total reads the cumulative counters.
func (s *RedisStore) Total(ctx context.Context) (Counters, error) {
	vals, err := s.rdb.HGetAll(ctx, s.prefix+":total").Result()
	if err != nil {
		return Counters{}, fmt.Errorf("read rate limit totals: %w", err)
	}

	var c Counters

	if _, err := fmt.Sscan(orZero(vals["allowed"]), &c.Allowed); err != nil {
		return Counters{}, err
	}

	if _, err := fmt.Sscan(orZero(vals["denied"]), &c.Denied); err != nil {
		return Counters{}, err
	}

	return c, nil
}

func orZero(v string) string {
	if v == "" {
		return "0"
	}

	return v
}
