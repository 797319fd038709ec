// Package stats records rate-limit decisions for dashboards and abuse analysis.
//
// Recording is best-effort: callers log a failed Record and carry on. Mind the
// cardinality of per-identifier counters before enabling them against a shared backend.
package stats

import (
	"context"
	"time"
)

// Event is one rate-limit decision.
type Event struct {
	Identifier string
	Strategy   string
	Allowed    bool

	// Route is the matched route pattern or path prefix, never the raw request path,
	// so route counters stay bounded.
	Method string
	Route  string

	At time.Time
}

// Store persists decision counters.
type Store interface {
	Record(ctx context.Context, ev Event) error
}

// Counters is an allowed/denied tally.
type Counters struct {
	Allowed int64
	Denied  int64
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}

	c.Denied++
}
