// Package busdriver defines the physical bus transport the dispatcher sends
// to and receives from. The core treats the bus as an external collaborator
// (spec §1); this package supplies that seam plus a loopback implementation
// for tests and a couple of real byte-stream-backed transports.
//
// Grounded on cmd/connection.go's Connection interface (shared by the
// teacher's serial and WebSocket backends) and
// other_examples/notnil-canbus__bus.go's Bus interface.
package busdriver

import "github.com/thermoquad/cbusnode/frame"

// Driver is the bus-side seam the dispatcher's send/receive path uses. It
// does not retry or buffer beyond what the spec names (§5): Recv is
// non-blocking and reports whether a frame was available.
type Driver interface {
	// Send transmits a frame. The identifier's priority/local-id fields are
	// expected to already be final; callers rewrite them before sending.
	Send(f frame.Frame) error

	// Recv returns the next available frame, or ok=false if none is queued.
	Recv() (f frame.Frame, ok bool)

	// Close releases any underlying resources.
	Close() error
}
