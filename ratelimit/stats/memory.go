package stats

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore keeps counters in process memory. Nothing expires.
type MemoryStore struct {
	mu         sync.Mutex
	total      Counters
	byRoute    map[string]Counters
	byStrategy map[string]Counters
	byID       map[string]Counters

	trackIdentifiers bool
}

type MemoryOption func(*MemoryStore)

// WithTrackIdentifiers also counts per identifier.
func WithTrackIdentifiers(track bool) MemoryOption {
	return func(s *MemoryStore) { s.trackIdentifiers = track }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		byRoute:    make(map[string]Counters),
		byStrategy: make(map[string]Counters),
		byID:       make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *MemoryStore) Record(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)
	bump(s.byRoute, ev.Method+" "+ev.Route, ev.Allowed)
	bump(s.byStrategy, ev.Strategy, ev.Allowed)

	if s.trackIdentifiers {
		bump(s.byID, ev.Identifier, ev.Allowed)
	}

	return nil
}

func bump(m map[string]Counters, k string, allowed bool) {
	c := m[k]
	c.add(allowed)
	m[k] = c
}

func (s *MemoryStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.total
}

func (s *MemoryStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()

	return maps.Clone(s.byRoute)
}

func (s *MemoryStore) ByStrategy() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()

	return maps.Clone(s.byStrategy)
}

func (s *MemoryStore) ByIdentifier() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()

	return maps.Clone(s.byID)
}
