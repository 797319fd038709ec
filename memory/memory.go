// Package memory wires a Bus whose integration events stay in process.
package memory

import (
	"log/slog"

	"github.com/next-trace/scg-saas-dispatch/adapters/inmemory"
	cbus "github.com/next-trace/scg-saas-dispatch/contract/bus"
	"github.com/next-trace/scg-saas-dispatch/servicebus"
)

// New constructs a Bus over p backed by the in-memory publisher and returns it along
// with the publisher and a cleanup function that closes the bus.
func New(p cbus.DependencyProvider, logger *slog.Logger, opts ...servicebus.BusOption) (*servicebus.Bus, *inmemory.Publisher, func()) {
	pub := inmemory.New()
	sb := servicebus.New(p, pub, logger, opts...)
	cleanup := func() { _ = sb.Close() }

	return sb, pub, cleanup
}
