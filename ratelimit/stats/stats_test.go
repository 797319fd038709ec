package stats_test

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/next-trace/scg-saas-dispatch/ratelimit/stats"
)

func TestMemoryStore_Counts(t *testing.T) {
	s := stats.NewMemoryStore(stats.WithTrackIdentifiers(true))

	evs := []stats.Event{
		{Identifier: "IP:1", Strategy: "AUTH", Allowed: true, Method: "POST", Route: "/api/auth/"},
		{Identifier: "IP:1", Strategy: "AUTH", Allowed: false, Method: "POST", Route: "/api/auth/"},
		{Identifier: "IP:2", Strategy: "AUTH", Allowed: true, Method: "POST", Route: "/api/oauth/"},
	}
	for _, ev := range evs {
		if err := s.Record(t.Context(), ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	if got := s.Total(); got.Allowed != 2 || got.Denied != 1 {
		t.Fatalf("total=%+v", got)
	}

	if got := s.ByRoute()["POST /api/auth/"]; got.Allowed != 1 || got.Denied != 1 {
		t.Fatalf("route=%+v", got)
	}

	if got := s.ByStrategy()["AUTH"]; got.Allowed != 2 || got.Denied != 1 {
		t.Fatalf("strategy=%+v", got)
	}

	if got := s.ByIdentifier()["IP:2"]; got.Allowed != 1 {
		t.Fatalf("identifier=%+v", got)
	}

	// snapshots are copies
	s.ByRoute()["POST /api/auth/"] = stats.Counters{}
	if s.ByRoute()["POST /api/auth/"].Allowed != 1 {
		t.Fatalf("snapshot aliases internal map")
	}
}

func TestMemoryStore_IdentifiersOptIn(t *testing.T) {
	s := stats.NewMemoryStore()
	_ = s.Record(t.Context(), stats.Event{Identifier: "IP:1", Allowed: true})

	if len(s.ByIdentifier()) != 0 {
		t.Fatalf("identifiers must not be tracked by default")
	}
}

func TestRedisStore_NilIsNoop(t *testing.T) {
	var s *stats.RedisStore
	if err := s.Record(t.Context(), stats.Event{}); err != nil {
		t.Fatalf("nil store: %v", err)
	}
}

func TestRedisStore_UnreachableReturnsError(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer func() { _ = rdb.Close() }()

	s := stats.NewRedisStore(rdb)
	if err := s.Record(t.Context(), stats.Event{Allowed: true}); err == nil {
		t.Fatalf("want connection error")
	}
}
