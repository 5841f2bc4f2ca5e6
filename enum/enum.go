// Package enum implements the bus-address enumeration algorithm: a 100ms
// collection window over a 128-bit response bitmap that selects the lowest
// free identifier.
//
// Grounded on original_source/src/CBUS.cpp's checkCANenum, with the bit
// indexing fixed per spec §4.2/§9: the original's read-side
// "(i*16)+b" indexing does not agree with its write-side "bit p%8 of byte
// p/16" indexing. This implementation uses byte=p>>3, bit=p&7 consistently
// for both.
package enum

import "github.com/thermoquad/cbusnode/clock"

// Window is the collection period a running enumeration waits out before
// committing a selection (spec §4.2).
const Window = 100 // milliseconds

// DefaultSelection is the identifier committed when every slot 1..127 is
// occupied, matching the original source's fallback (spec §4.2).
const DefaultSelection = 1

// responses is the 128-bit field recording which identifiers peers have
// advertised during the current collection window.
type responses [16]byte

func (r *responses) set(id byte) {
	r[id>>3] |= 1 << (id & 7)
}

func (r responses) isSet(id byte) bool {
	return r[id>>3]&(1<<(id&7)) != 0
}

// selectFree scans responses for the lowest identifier in 1..127 that is not
// set, skipping 0 (reserved). If every slot is occupied it returns
// DefaultSelection, matching the original source's best-effort fallback.
func (r responses) selectFree() byte {
	for id := byte(1); id < 128; id++ {
		if !r.isSet(id) {
			return id
		}
	}
	return DefaultSelection
}

// Engine runs one enumeration cycle at a time. It owns no bus I/O itself;
// the caller (the top-level Dispatcher) is responsible for emitting the
// probe frame Engine.Start requests and for feeding peer responses into
// Record.
type Engine struct {
	clock clock.Clock

	inProgress bool
	startedAt  int64
	resp       responses
}

// New creates an Engine using the given clock.
func New(c clock.Clock) *Engine {
	return &Engine{clock: c}
}

// InProgress reports whether a collection window is currently open.
func (e *Engine) InProgress() bool {
	return e.inProgress
}

// Start clears the response bitmap and opens a new 100ms collection window.
// The caller must emit the zero-length remote probe frame itself.
func (e *Engine) Start() {
	e.resp = responses{}
	e.startedAt = e.clock.NowMillis()
	e.inProgress = true
}

// Record notes that peer identifier p responded during the current window.
// p == 0 is ignored (reserved, never a valid peer response).
func (e *Engine) Record(p byte) {
	if !e.inProgress || p == 0 {
		return
	}
	e.resp.set(p)
}

// Check polls the collection window. If it has elapsed, it selects the
// lowest free identifier, closes the window, and returns (id, true). Before
// the window elapses it returns (0, false).
func (e *Engine) Check() (byte, bool) {
	if !e.inProgress {
		return 0, false
	}
	if e.clock.NowMillis()-e.startedAt < Window {
		return 0, false
	}
	id := e.resp.selectFree()
	e.inProgress = false
	return id, true
}
