// Package ringbuffer implements the fixed-capacity overwrite-on-full circular
// frame buffer used for the dispatcher's "consume own events" loopback path.
//
// Grounded on the counter/statistics style of
// pkg/helios_protocol/statistics.go (running counters, a Reset method) and
// the spec's §4.6 contract.
package ringbuffer

import (
	"errors"

	"github.com/thermoquad/cbusnode/clock"
	"github.com/thermoquad/cbusnode/frame"
)

// ErrEmpty is returned by Get/Peek when the buffer holds no frames.
var ErrEmpty = errors.New("ringbuffer: empty")

type slot struct {
	f          frame.Frame
	insertedAt int64
}

// Buffer is a fixed-capacity ring of frames with overwrite-on-full
// semantics: putting into a full buffer evicts the oldest entry rather than
// blocking or failing.
type Buffer struct {
	clock clock.Clock
	slots []slot
	head  int // index of the oldest entry
	tail  int // index the next Put will write to
	size  int

	puts      uint64
	gets      uint64
	overflows uint64
	hwm       int
}

// New creates a Buffer with the given capacity using the system clock.
func New(capacity int) *Buffer {
	return NewWithClock(capacity, clock.System{})
}

// NewWithClock creates a Buffer using an injected clock, for deterministic
// tests of InsertTime.
func NewWithClock(capacity int, c clock.Clock) *Buffer {
	if capacity <= 0 {
		panic("ringbuffer: capacity must be positive")
	}
	return &Buffer{
		clock: c,
		slots: make([]slot, capacity),
	}
}

// Capacity returns the buffer's fixed capacity.
func (b *Buffer) Capacity() int {
	return len(b.slots)
}

// Size returns the number of frames currently buffered.
func (b *Buffer) Size() int {
	return b.size
}

// Full reports whether the buffer has reached capacity.
func (b *Buffer) Full() bool {
	return b.size == len(b.slots)
}

// Empty reports whether the buffer holds no frames.
func (b *Buffer) Empty() bool {
	return b.size == 0
}

// Available reports how many more frames can be put before the buffer is
// full.
func (b *Buffer) Available() int {
	return len(b.slots) - b.size
}

// Put inserts f at the tail. If the buffer is full, the oldest entry is
// overwritten: head advances to match, and the overflow counter increments.
func (b *Buffer) Put(f frame.Frame) {
	b.slots[b.tail] = slot{f: f, insertedAt: b.clock.NowMillis()}
	cap := len(b.slots)
	wasFull := b.Full()
	b.tail = (b.tail + 1) % cap
	b.puts++
	if wasFull {
		b.head = (b.head + 1) % cap
		b.overflows++
	} else {
		b.size++
	}
	if b.size > b.hwm {
		b.hwm = b.size
	}
}

// Get removes and returns the oldest frame.
func (b *Buffer) Get() (frame.Frame, error) {
	if b.Empty() {
		return frame.Frame{}, ErrEmpty
	}
	s := b.slots[b.head]
	b.head = (b.head + 1) % len(b.slots)
	b.size--
	b.gets++
	return s.f, nil
}

// Peek returns the oldest frame without removing it.
func (b *Buffer) Peek() (frame.Frame, error) {
	if b.Empty() {
		return frame.Frame{}, ErrEmpty
	}
	return b.slots[b.head].f, nil
}

// Clear empties the buffer without affecting the cumulative counters.
func (b *Buffer) Clear() {
	b.head = 0
	b.tail = 0
	b.size = 0
}

// Puts is the cumulative count of Put calls.
func (b *Buffer) Puts() uint64 { return b.puts }

// Gets is the cumulative count of successful Get calls.
func (b *Buffer) Gets() uint64 { return b.gets }

// Overflows is the cumulative count of overwrite-on-full evictions.
func (b *Buffer) Overflows() uint64 { return b.overflows }

// HighWaterMark is the maximum Size ever observed.
func (b *Buffer) HighWaterMark() int { return b.hwm }

// InsertTime returns the millisecond timestamp the oldest entry was put at.
// Valid only until the next Get.
func (b *Buffer) InsertTime() (int64, error) {
	if b.Empty() {
		return 0, ErrEmpty
	}
	return b.slots[b.head].insertedAt, nil
}
