// Package button defines the optional push-button contract (spec §4.5/§6).
// The ModeMachine polls it each tick for the edge-detected hold durations
// that trigger mode transitions; a headless node wires in Noop.
package button

// Button is a single push-button, sampled once per host tick.
type Button interface {
	// Tick samples the button's current electrical state.
	Tick()

	IsPressed() bool

	// StateChanged reports whether the pressed/released state changed since
	// the last Tick.
	StateChanged() bool

	// LastPressDurationMs is the duration of the most recently completed
	// press, valid on the tick where StateChanged transitions to released.
	LastPressDurationMs() int64

	// CurrentStateDurationMs is how long the button has held its current
	// state, for in-progress hold detection.
	CurrentStateDurationMs() int64
}

// Noop implements Button for a node with no physical button wired.
type Noop struct{}

func (Noop) Tick()                        {}
func (Noop) IsPressed() bool               { return false }
func (Noop) StateChanged() bool            { return false }
func (Noop) LastPressDurationMs() int64    { return 0 }
func (Noop) CurrentStateDurationMs() int64 { return 0 }

var _ Button = Noop{}
