package busdriver

import "github.com/thermoquad/cbusnode/frame"

// Loopback is an in-memory Driver used by tests and the `sim` CLI command to
// emulate several peers sharing one bus: every Loopback created from the
// same Bus observes every other member's Send.
type Loopback struct {
	bus    *Bus
	self   chan frame.Frame
	closed bool
}

// Bus is a shared broadcast medium for Loopback drivers: every frame sent by
// one member is delivered to every other member's inbound queue, matching
// the spec's "every node sees every frame" non-goal around routing (§1).
type Bus struct {
	members []*Loopback
}

// NewBus creates an empty shared loopback bus.
func NewBus() *Bus {
	return &Bus{}
}

// NewMember attaches a new Loopback driver to the bus.
func (b *Bus) NewMember(queueDepth int) *Loopback {
	m := &Loopback{bus: b, self: make(chan frame.Frame, queueDepth)}
	b.members = append(b.members, m)
	return m
}

// Send implements Driver by broadcasting f to every other member's queue.
func (l *Loopback) Send(f frame.Frame) error {
	if l.closed {
		return ErrClosed
	}
	for _, m := range l.bus.members {
		if m == l {
			continue
		}
		select {
		case m.self <- f:
		default:
			// Peer's inbound queue is full; drop, matching the bus's
			// best-effort broadcast semantics (spec §5 backpressure note).
		}
	}
	return nil
}

// Recv implements Driver, non-blocking.
func (l *Loopback) Recv() (frame.Frame, bool) {
	select {
	case f := <-l.self:
		return f, true
	default:
		return frame.Frame{}, false
	}
}

// Close implements Driver.
func (l *Loopback) Close() error {
	l.closed = true
	return nil
}

var _ Driver = (*Loopback)(nil)
