// Package indicator defines the optional indicator-light contract (spec
// §4.5/§6). A headless node without LEDs wires in Noop and the rest of the
// core behaves identically.
package indicator

// Mode mirrors the ModeMachine's three states for indicator purposes.
type Mode int

const (
	Lean Mode = iota
	Transitioning
	Flexible
)

// Indicator drives the two-LED mode display: LEAN is green-on/yellow-off,
// FLEXIBLE is yellow-on/green-off, TRANSITIONING is yellow-blinking/green-off.
type Indicator interface {
	On()
	Off()
	Blink()
	Pulse()
	Tick()

	// SetMode applies the indicator pattern for a ModeMachine state.
	SetMode(m Mode)
}

// Noop implements Indicator with no hardware behind it, for headless nodes.
type Noop struct{}

func (Noop) On()          {}
func (Noop) Off()         {}
func (Noop) Blink()       {}
func (Noop) Pulse()       {}
func (Noop) Tick()        {}
func (Noop) SetMode(Mode) {}

var _ Indicator = Noop{}
