// Package modemachine implements the lean/transitioning/flexible mode state
// machine and its 30s negotiation watchdog.
//
// Grounded on original_source/src/CBUS.cpp's SLiM/FLiM transition logic
// (bModeChanging, timeOutTimer, SW_TR_HOLD) and on the button-hold edge
// detection in the same source's button-handling block.
package modemachine

import (
	"github.com/thermoquad/cbusnode/button"
	"github.com/thermoquad/cbusnode/clock"
	"github.com/thermoquad/cbusnode/configstore"
	"github.com/thermoquad/cbusnode/indicator"
)

// Mode is one of the three states named in spec §4.5.
type Mode int

const (
	Lean Mode = iota
	Transitioning
	Flexible
)

// TimeoutMs is the negotiation watchdog duration (spec §5).
const TimeoutMs = 30_000

// Button hold-duration thresholds (spec §4.5), named after the original
// source's SW_TR_HOLD constant.
const (
	HoldTransitionMs  = 6_000
	RenegotiateMinMs  = 1_000
	RenegotiateMaxMs  = 1_999
	QuickPressMaxMs   = 500
)

// Machine tracks the current mode and the in-flight transition deadline. It
// does not itself send frames; the Dispatcher emits RQNN when a transition
// begins and NNACK in reply to SNN or RQNN. Revert sends no frame: no NNREL
// is emitted when a node drops back to Lean.
type Machine struct {
	clock     clock.Clock
	indicator indicator.Indicator
	button    button.Button

	mode              Mode
	priorMode         Mode
	transitionStarted int64
}

// New creates a Machine, seeding its mode from the store's persisted
// flexible_mode flag.
func New(c clock.Clock, ind indicator.Indicator, btn button.Button, store configstore.ConfigStore) *Machine {
	m := &Machine{clock: c, indicator: ind, button: btn}
	if store.FlexibleMode() {
		m.mode = Flexible
	} else {
		m.mode = Lean
	}
	m.priorMode = m.mode
	m.applyIndicator()
	return m
}

// Mode returns the current state.
func (m *Machine) Mode() Mode {
	return m.mode
}

// PulseActivity pulses the activity indicator for one received frame.
func (m *Machine) PulseActivity() {
	m.indicator.Pulse()
}

func (m *Machine) applyIndicator() {
	switch m.mode {
	case Lean:
		m.indicator.SetMode(indicator.Lean)
	case Transitioning:
		m.indicator.SetMode(indicator.Transitioning)
	case Flexible:
		m.indicator.SetMode(indicator.Flexible)
	}
}

// BeginTransition moves Lean -> Transitioning (or Flexible -> Transitioning,
// for a revert-then-renegotiate), recording the 30s deadline. The caller
// emits RQNN itself; this call only updates state and indicators.
func (m *Machine) BeginTransition() {
	m.priorMode = m.mode
	m.mode = Transitioning
	m.transitionStarted = m.clock.NowMillis()
	m.applyIndicator()
}

// CommitFlexible moves Transitioning -> Flexible on receipt of SNN,
// persisting flexible_mode. The caller is responsible for committing the
// node number and triggering enumeration.
func (m *Machine) CommitFlexible(store configstore.ConfigStore) {
	store.SetFlexibleMode(true)
	m.mode = Flexible
	m.applyIndicator()
}

// Abort reverts Transitioning -> the prior mode, on receipt of a conflicting
// RQNN from another node claiming setup.
func (m *Machine) Abort() {
	if m.mode != Transitioning {
		return
	}
	m.mode = m.priorMode
	m.applyIndicator()
}

// Revert moves Flexible -> Lean on a user-initiated revert, clearing
// flexible_mode, node number, and local id.
func (m *Machine) Revert(store configstore.ConfigStore) {
	store.SetFlexibleMode(false)
	store.SetNodeNumber(0)
	store.SetLocalID(0)
	m.mode = Lean
	m.applyIndicator()
}

// CheckTimeout reports whether the 30s negotiation watchdog has elapsed
// while Transitioning; if so it reverts to the prior mode and returns true.
func (m *Machine) CheckTimeout() bool {
	if m.mode != Transitioning {
		return false
	}
	if m.clock.NowMillis()-m.transitionStarted < TimeoutMs {
		return false
	}
	m.mode = m.priorMode
	m.applyIndicator()
	return true
}

// ButtonEvent enumerates the edge-detected button actions spec §4.5 names.
type ButtonEvent int

const (
	NoEvent ButtonEvent = iota
	EventHoldToggle     // >= 6s hold: toggle Lean<->Transitioning, or Flexible->Lean
	EventRenegotiate    // 1000-1999ms: re-enter Transitioning
	EventStartEnum      // <500ms while Flexible: start enumeration
)

// PollButton samples the button and, on release, classifies the press
// duration into one of the edge-triggered events spec §4.5 names. It is a
// pure classifier; the caller (Dispatcher) applies the resulting transition
// and/or triggers enumeration.
func (m *Machine) PollButton() ButtonEvent {
	m.button.Tick()
	if !m.button.StateChanged() || m.button.IsPressed() {
		return NoEvent
	}
	d := m.button.LastPressDurationMs()
	switch {
	case d >= HoldTransitionMs:
		return EventHoldToggle
	case d >= RenegotiateMinMs && d <= RenegotiateMaxMs:
		return EventRenegotiate
	case d < QuickPressMaxMs && m.mode == Flexible:
		return EventStartEnum
	default:
		return NoEvent
	}
}
