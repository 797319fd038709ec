package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// BucketStore owns the bucket state per key and performs the atomic take of one token.
// Implementations must serialize takes on the same key.
type BucketStore interface {
	Take(ctx context.Context, key string, cfg BucketConfig) (Result, error)
}

// MemoryBucketStore keeps one token bucket per key in process memory.
// Keys idle for longer than the idle TTL are dropped by Cleanup; a dropped key
// starts again with a full bucket.
type MemoryBucketStore struct {
	mu      sync.Mutex
	entries map[string]*bucketEntry

	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type bucketEntry struct {
	mu  sync.Mutex
	lim *rate.Limiter
	// last is the latest timestamp handed to lim, guarded by mu.
	last time.Time
	// lastSeen is guarded by the store mutex.
	lastSeen time.Time
}

// StoreOption configures a MemoryBucketStore.
type StoreOption func(*MemoryBucketStore)

// WithIdleTTL sets how long an untouched bucket survives. Zero or negative keeps buckets forever.
func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *MemoryBucketStore) { s.idleTTL = d }
}

// WithCleanupEvery sets the janitor period. Zero disables the janitor.
func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *MemoryBucketStore) { s.cleanupEvery = d }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *MemoryBucketStore) { s.now = now }
}

// NewMemoryBucketStore returns an empty store with a 15 minute idle TTL swept every 2 minutes.
func NewMemoryBucketStore(opts ...StoreOption) *MemoryBucketStore {
	s := &MemoryBucketStore{
		entries:      make(map[string]*bucketEntry),
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Take removes one token from the bucket for key, creating a full bucket on first use.
func (s *MemoryBucketStore) Take(_ context.Context, key string, cfg BucketConfig) (Result, error) {
	ent := s.entry(key, cfg)

	ent.mu.Lock()
	defer ent.mu.Unlock()

	return ent.take(s.now(), cfg), nil
}

// take runs under e.mu. The limiter only ever sees non-decreasing timestamps.
func (e *bucketEntry) take(now time.Time, cfg BucketConfig) Result {
	if now.Before(e.last) {
		now = e.last
	}

	e.last = now

	r := e.lim.ReserveN(now, 1)
	if !r.OK() {
		return Denied(cfg.RefillPeriod)
	}

	if d := r.DelayFrom(now); d > 0 {
		// give the token back; a denied caller does not queue
		r.CancelAt(now)
		return Denied(d)
	}

	return Allowed(int64(math.Floor(e.lim.TokensAt(now))))
}

func (s *MemoryBucketStore) entry(key string, cfg BucketConfig) *bucketEntry {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent
	}

	ent := newBucketEntry(cfg, now)
	s.entries[key] = ent

	return ent
}

func newBucketEntry(cfg BucketConfig, now time.Time) *bucketEntry {
	return &bucketEntry{lim: rate.NewLimiter(cfg.Limit(), cfg.Capacity), lastSeen: now}
}

// Len returns the number of live buckets.
func (s *MemoryBucketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// Cleanup drops every bucket idle for longer than the idle TTL.
func (s *MemoryBucketStore) Cleanup() {
	if s.idleTTL <= 0 {
		return
	}

	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor runs Cleanup periodically until ctx is done.
func (s *MemoryBucketStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 || s.idleTTL <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)

	go func() {
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
