package modemachine

import (
	"testing"
	"time"

	"github.com/thermoquad/cbusnode/clock"
	"github.com/thermoquad/cbusnode/configstore"
	"github.com/thermoquad/cbusnode/indicator"
)

type fakeButton struct {
	pressed      bool
	changed      bool
	lastPressMs  int64
	currentMs    int64
}

func (f *fakeButton) Tick()                        {}
func (f *fakeButton) IsPressed() bool               { return f.pressed }
func (f *fakeButton) StateChanged() bool            { return f.changed }
func (f *fakeButton) LastPressDurationMs() int64    { return f.lastPressMs }
func (f *fakeButton) CurrentStateDurationMs() int64 { return f.currentMs }

func TestModeTimeoutReverts(t *testing.T) {
	c := clock.NewFake(0)
	store := configstore.NewMemStore()
	m := New(c, indicator.Noop{}, &fakeButton{}, store)

	m.BeginTransition()
	if m.Mode() != Transitioning {
		t.Fatal("expected Transitioning after BeginTransition")
	}

	c.Advance((TimeoutMs - 1) * time.Millisecond)
	if m.CheckTimeout() {
		t.Fatal("should not time out before 30s elapses")
	}

	c.Advance(1 * time.Millisecond)
	if !m.CheckTimeout() {
		t.Fatal("should time out once 30s has elapsed")
	}
	if m.Mode() != Lean {
		t.Fatalf("Mode() after timeout = %v, want Lean", m.Mode())
	}
}

func TestSNNCommitsFlexible(t *testing.T) {
	c := clock.NewFake(0)
	store := configstore.NewMemStore()
	m := New(c, indicator.Noop{}, &fakeButton{}, store)

	m.BeginTransition()
	store.SetNodeNumber(0x0104)
	m.CommitFlexible(store)

	if m.Mode() != Flexible {
		t.Fatalf("Mode() = %v, want Flexible", m.Mode())
	}
	if !store.FlexibleMode() {
		t.Fatal("FlexibleMode() should be true after CommitFlexible")
	}
	if store.NodeNumber() != 0x0104 {
		t.Fatalf("NodeNumber() = %#x, want 0x0104", store.NodeNumber())
	}
}

func TestAbortRevertsToLean(t *testing.T) {
	c := clock.NewFake(0)
	store := configstore.NewMemStore()
	m := New(c, indicator.Noop{}, &fakeButton{}, store)
	m.BeginTransition()
	m.Abort()
	if m.Mode() != Lean {
		t.Fatalf("Mode() = %v, want Lean", m.Mode())
	}
}

func TestRevertClearsIdentity(t *testing.T) {
	c := clock.NewFake(0)
	store := configstore.NewMemStore()
	store.SetFlexibleMode(true)
	store.SetNodeNumber(260)
	store.SetLocalID(5)
	m := New(c, indicator.Noop{}, &fakeButton{}, store)

	m.Revert(store)

	if m.Mode() != Lean {
		t.Fatalf("Mode() = %v, want Lean", m.Mode())
	}
	if store.NodeNumber() != 0 || store.LocalID() != 0 || store.FlexibleMode() {
		t.Fatal("Revert should zero node number, local id, and flexible flag")
	}
}

func TestPollButtonClassifiesHoldDurations(t *testing.T) {
	c := clock.NewFake(0)
	store := configstore.NewMemStore()
	btn := &fakeButton{changed: true, pressed: false}
	m := New(c, indicator.Noop{}, btn, store)

	btn.lastPressMs = 6000
	if ev := m.PollButton(); ev != EventHoldToggle {
		t.Fatalf("event = %v, want EventHoldToggle", ev)
	}

	btn.lastPressMs = 1500
	if ev := m.PollButton(); ev != EventRenegotiate {
		t.Fatalf("event = %v, want EventRenegotiate", ev)
	}

	store.SetFlexibleMode(true)
	m2 := New(c, indicator.Noop{}, btn, store)
	btn.lastPressMs = 100
	if ev := m2.PollButton(); ev != EventStartEnum {
		t.Fatalf("event = %v, want EventStartEnum", ev)
	}
}
