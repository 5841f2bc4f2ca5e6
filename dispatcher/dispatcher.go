// Package dispatcher implements the top-level per-frame handler: it decodes
// operation codes, applies identifier-clash detection, routes to the
// enumeration, mode, and event-learn sub-handlers, and emits responses.
//
// Grounded on original_source/src/CBUS.cpp's process()/handleFrame() pair,
// restructured around a flat opcode-keyed dispatch table per spec §9's
// design note preferring a table over a deep conditional chain.
package dispatcher

import (
	"time"

	"github.com/thermoquad/cbusnode/busdriver"
	"github.com/thermoquad/cbusnode/button"
	"github.com/thermoquad/cbusnode/clock"
	"github.com/thermoquad/cbusnode/configstore"
	"github.com/thermoquad/cbusnode/enum"
	"github.com/thermoquad/cbusnode/eventdispatch"
	"github.com/thermoquad/cbusnode/frame"
	"github.com/thermoquad/cbusnode/indicator"
	"github.com/thermoquad/cbusnode/longmessage"
	"github.com/thermoquad/cbusnode/modemachine"
	"github.com/thermoquad/cbusnode/ringbuffer"
)

// nerdPacing is the minimum inter-frame delay the NERD handler observes
// between successive ENRSP replies (spec §4.3/§9).
const nerdPacing = 10 * time.Millisecond

// Flags holds the dispatcher's transient, in-memory state that is not
// persisted by the ConfigStore (spec §3's DispatcherFlags). Mode-changing
// and enumeration state live in ModeMachine and the enum Engine, which the
// Dispatcher owns exclusively alongside these flags.
type Flags struct {
	LearnMode    bool
	EnumRequired bool
}

// FilterFunc receives a read-only view of a drained frame before it reaches
// handleFrame.
type FilterFunc func(f frame.Frame)

// Dispatcher is the protocol core: it owns the enumeration engine, the mode
// machine, the event dispatcher, and the transient Flags, and drives them
// all from a single-threaded Process call (spec §5 forbids recursion into
// Process and any locking inside the core).
type Dispatcher struct {
	clock clock.Clock
	store configstore.ConfigStore
	bus   busdriver.Driver

	loopback *ringbuffer.Buffer
	longMsg  longmessage.FragmentHandler

	enum   *enum.Engine
	mode   *modemachine.Machine
	events *eventdispatch.Dispatcher

	params Params
	name   ModuleName
	flags  Flags

	filterOpCodes []byte
	filterFunc    FilterFunc

	transmitObserver func(frame.Frame)

	sleep func(time.Duration)
}

// New creates a Dispatcher with no indicator or button wired (a headless
// node). Use NewWithUI to attach them.
func New(c clock.Clock, store configstore.ConfigStore, bus busdriver.Driver, params Params, name ModuleName) *Dispatcher {
	return NewWithUI(c, store, bus, params, name, indicator.Noop{}, button.Noop{})
}

// NewWithUI creates a Dispatcher with the given indicator and button wired
// into its ModeMachine (spec §4.5/§4.7).
func NewWithUI(c clock.Clock, store configstore.ConfigStore, bus busdriver.Driver, params Params, name ModuleName, ind indicator.Indicator, btn button.Button) *Dispatcher {
	return &Dispatcher{
		clock:  c,
		store:  store,
		bus:    bus,
		enum:   enum.New(c),
		mode:   modemachine.New(c, ind, btn, store),
		events: eventdispatch.New(store),
		params: params,
		name:   name,
		sleep:  time.Sleep,
	}
}

// SetLoopback attaches the circular frame buffer used for the "consume own
// events" path (spec §4.6): every accessory-event frame this Dispatcher
// sends is also put onto buf (other frames are not), and Process drains buf
// ahead of the bus source.
func (d *Dispatcher) SetLoopback(buf *ringbuffer.Buffer) {
	d.loopback = buf
}

// SetLongMessageHandler registers the fragment handler DTXC frames are
// forwarded to. A nil handler (the default) causes DTXC frames to be
// silently dropped.
func (d *Dispatcher) SetLongMessageHandler(h longmessage.FragmentHandler) {
	d.longMsg = h
}

// SetFrameFilter registers a user observer invoked for every drained frame
// before handleFrame runs. An empty allowOpCodes list accepts every opcode.
func (d *Dispatcher) SetFrameFilter(allowOpCodes []byte, fn FilterFunc) {
	d.filterOpCodes = allowOpCodes
	d.filterFunc = fn
}

// SetTransmitObserver registers a callback invoked for every outbound frame.
func (d *Dispatcher) SetTransmitObserver(fn func(frame.Frame)) {
	d.transmitObserver = fn
}

// Mode exposes the current lean/transitioning/flexible state.
func (d *Dispatcher) Mode() modemachine.Mode {
	return d.mode.Mode()
}

// ModeMachine exposes the underlying machine for callers (the `run`/`sim`
// host loop) that need to drive transitions directly, e.g. from a UI event.
func (d *Dispatcher) ModeMachine() *modemachine.Machine {
	return d.mode
}

// Events exposes the event dispatcher so a host can register the
// event_handler/event_handler_ex callback named in spec §6.
func (d *Dispatcher) Events() *eventdispatch.Dispatcher {
	return d.events
}

// Store exposes the underlying ConfigStore for host introspection (status
// displays, CLI commands) that need to read node identity or event counts
// without going through the frame protocol.
func (d *Dispatcher) Store() configstore.ConfigStore {
	return d.store
}

// Process drains up to maxFrames inbound frames and services the
// enumeration and mode-timeout timers (spec §4.1). It must not be called
// recursively, and user callbacks invoked from within it must not call back
// into Process.
func (d *Dispatcher) Process(maxFrames int) {
	if d.flags.EnumRequired {
		d.flags.EnumRequired = false
		d.startEnumeration()
	}

	d.handleButtonEvent(d.mode.PollButton())

	for i := 0; i < maxFrames; i++ {
		f, ok := d.nextInboundFrame()
		if !ok {
			break
		}
		if d.filterFunc != nil && d.filterAllows(f) {
			d.filterFunc(f)
		}
		d.handleFrame(f)
	}

	if id, done := d.enum.Check(); done {
		d.store.SetLocalID(id)
	}

	d.mode.CheckTimeout()
}

func (d *Dispatcher) filterAllows(f frame.Frame) bool {
	if len(d.filterOpCodes) == 0 {
		return true
	}
	opc := f.OpCode()
	for _, c := range d.filterOpCodes {
		if c == opc {
			return true
		}
	}
	return false
}

func (d *Dispatcher) nextInboundFrame() (frame.Frame, bool) {
	if d.loopback != nil {
		if f, err := d.loopback.Get(); err == nil {
			return f, true
		}
	}
	if d.bus != nil {
		return d.bus.Recv()
	}
	return frame.Frame{}, false
}

// handleFrame implements spec §4.1's handle_frame steps in order.
func (d *Dispatcher) handleFrame(f frame.Frame) {
	opc := f.OpCode()
	nn := f.NodeNumber()
	en := f.EventNumber()
	remoteLocalID := f.ID.LocalID()

	d.mode.PulseActivity()

	if f.Remote && f.Length == 0 {
		d.sendProbeResponse()
		return
	}

	if f.Length > 0 && remoteLocalID == d.store.LocalID() && nn != d.store.NodeNumber() {
		d.flags.EnumRequired = true
	}

	if f.Extended {
		return
	}

	if d.enum.InProgress() && f.Length == 0 {
		d.enum.Record(remoteLocalID)
		return
	}

	if f.Length == 0 {
		return
	}

	h, ok := opcodeTable[opc]
	if !ok {
		return
	}
	if err := h(d, nn, en, f); err != nil {
		if ce, ok := err.(CmdErr); ok {
			d.sendCmdErr(ce)
		}
	}
}

func (d *Dispatcher) handleButtonEvent(ev modemachine.ButtonEvent) {
	switch ev {
	case modemachine.EventHoldToggle:
		switch d.mode.Mode() {
		case modemachine.Flexible:
			d.mode.Revert(d.store)
		case modemachine.Lean:
			d.beginTransition()
		case modemachine.Transitioning:
			d.mode.Abort()
		}
	case modemachine.EventRenegotiate:
		d.beginTransition()
	case modemachine.EventStartEnum:
		d.startEnumeration()
	}
}

func (d *Dispatcher) beginTransition() {
	d.mode.BeginTransition()
	resp := frame.New(0, false, false, []byte{OpRQNN, 0, 0}).WithNodeNumber(d.store.NodeNumber())
	d.send(resp)
}

func (d *Dispatcher) startEnumeration() {
	d.enum.Start()
	probe := frame.New(0, false, true, nil)
	d.send(probe)
}

// EmitEvent broadcasts a long-form accessory event (spec glossary:
// "producers" emit events that "consumers" look up against their own event
// table). When a loopback buffer is attached, the outbound frame is also
// queued so this node processes its own event on a later Process tick.
func (d *Dispatcher) EmitEvent(nn, en uint16, on bool) {
	opc := OpACOF
	if on {
		opc = OpACON
	}
	data := []byte{opc, byte(nn >> 8), byte(nn), byte(en >> 8), byte(en)}
	d.send(frame.New(0, false, false, data))
}

func (d *Dispatcher) sendProbeResponse() {
	d.send(frame.New(0, false, false, nil))
}

func (d *Dispatcher) sendCmdErr(e CmdErr) {
	resp := frame.New(0, false, false, []byte{OpCMDERR, 0, 0, byte(e)}).WithNodeNumber(d.store.NodeNumber())
	d.send(resp)
}

func (d *Dispatcher) sendWrack(nn uint16) {
	resp := frame.New(0, false, false, []byte{OpWRACK, 0, 0}).WithNodeNumber(nn)
	d.send(resp)
}

// send rewrites the outbound identifier from the module's current local id
// and priority, notifies the transmit observer, writes to the bus, and —
// when a loopback buffer is attached and the frame is an accessory event —
// queues the frame for self-consumption on a subsequent Process tick
// (spec §4.6).
func (d *Dispatcher) send(f frame.Frame) {
	f.ID = frame.Encode(frame.DefaultPriority, d.store.LocalID())
	if d.transmitObserver != nil {
		d.transmitObserver(f)
	}
	if d.bus != nil {
		d.bus.Send(f)
	}
	if d.loopback != nil && isAccessoryOpcode(f.OpCode()) {
		d.loopback.Put(f)
	}
}

// isAccessoryOpcode reports whether opc is one of the accessory-event
// opcodes eligible for the "consume own events" loopback path (spec §4.6):
// only producer/consumer accessory traffic is fed back to this node's own
// EventDispatcher, never control or response frames.
func isAccessoryOpcode(opc byte) bool {
	switch opc {
	case OpACON, OpACOF, OpARON, OpAROF, OpASON, OpASOF:
		return true
	}
	return false
}
