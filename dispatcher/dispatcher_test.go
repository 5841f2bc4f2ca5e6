package dispatcher

import (
	"testing"
	"time"

	"github.com/thermoquad/cbusnode/clock"
	"github.com/thermoquad/cbusnode/configstore"
	"github.com/thermoquad/cbusnode/frame"
	"github.com/thermoquad/cbusnode/indicator"
	"github.com/thermoquad/cbusnode/modemachine"
)

type mockDriver struct {
	sent []frame.Frame
	in   []frame.Frame
}

func (m *mockDriver) Send(f frame.Frame) error {
	m.sent = append(m.sent, f)
	return nil
}

func (m *mockDriver) Recv() (frame.Frame, bool) {
	if len(m.in) == 0 {
		return frame.Frame{}, false
	}
	f := m.in[0]
	m.in = m.in[1:]
	return f, true
}

func (m *mockDriver) Close() error { return nil }

func (m *mockDriver) push(f frame.Frame) { m.in = append(m.in, f) }

type fakeButton struct {
	pressed     bool
	changed     bool
	lastPressMs int64
}

func (f *fakeButton) Tick()                        {}
func (f *fakeButton) IsPressed() bool               { return f.pressed }
func (f *fakeButton) StateChanged() bool            { return f.changed }
func (f *fakeButton) LastPressDurationMs() int64    { return f.lastPressMs }
func (f *fakeButton) CurrentStateDurationMs() int64 { return 0 }

func newTestDispatcher() (*Dispatcher, *mockDriver, configstore.ConfigStore) {
	store := configstore.NewMemStore()
	bus := &mockDriver{}
	d := New(clock.NewFake(0), store, bus, Params{8, 0, 0, 0, 0, 0, 0, 0, 0}, NewModuleName("TESTNODE"))
	return d, bus, store
}

func dataFrame(payload ...byte) frame.Frame {
	return frame.New(0, false, false, payload)
}

func TestCANIDBoundaries(t *testing.T) {
	d, _, store := newTestDispatcher()
	store.SetNodeNumber(0x0104)

	cases := []struct {
		newID   byte
		wantErr bool
	}{
		{0, true},
		{1, false},
		{99, false},
		{100, true},
	}
	for _, c := range cases {
		if err := handleCANID(d, 0x0104, 0, dataFrame(OpCANID, 0x01, 0x04, c.newID)); (err != nil) != c.wantErr {
			t.Errorf("CANID(%d): err=%v, wantErr=%v", c.newID, err, c.wantErr)
		}
	}
}

func TestRQNPNBoundaries(t *testing.T) {
	d, _, store := newTestDispatcher()
	store.SetNodeNumber(0x0104)
	// Params.Count() == 8 per newTestDispatcher.
	cases := []struct {
		idx     byte
		wantErr bool
	}{
		{0, true},
		{1, false},
		{8, false},
		{9, true},
	}
	for _, c := range cases {
		if err := handleRQNPN(d, 0x0104, 0, dataFrame(OpRQNPN, 0x01, 0x04, c.idx)); (err != nil) != c.wantErr {
			t.Errorf("RQNPN(%d): err=%v, wantErr=%v", c.idx, err, c.wantErr)
		}
	}
}

func TestNVRDNVSETBoundaries(t *testing.T) {
	d, _, store := newTestDispatcher()
	store.SetNodeNumber(0x0104)

	cases := []struct {
		idx     byte
		wantErr bool
	}{
		{0, true},
		{1, false},
		{configstore.NumNVs, false},
		{configstore.NumNVs + 1, true},
	}
	for _, c := range cases {
		if err := handleNVRD(d, 0x0104, 0, dataFrame(OpNVRD, 0x01, 0x04, c.idx)); (err != nil) != c.wantErr {
			t.Errorf("NVRD(%d): err=%v, wantErr=%v", c.idx, err, c.wantErr)
		}
		if err := handleNVSET(d, 0x0104, 0, dataFrame(OpNVSET, 0x01, 0x04, c.idx, 0x55)); (err != nil) != c.wantErr {
			t.Errorf("NVSET(%d): err=%v, wantErr=%v", c.idx, err, c.wantErr)
		}
	}
}

func TestSetupScenario(t *testing.T) {
	store := configstore.NewMemStore()
	bus := &mockDriver{}
	btn := &fakeButton{changed: true, lastPressMs: 7000}
	d := NewWithUI(clock.NewFake(0), store, bus, Params{8, 0, 0, 0, 0, 0, 0, 0, 0}, NewModuleName("TESTNODE"), indicator.Noop{}, btn)

	d.Process(10)
	if len(bus.sent) != 1 || bus.sent[0].OpCode() != OpRQNN {
		t.Fatalf("expected a single RQNN after hold, got %d frames", len(bus.sent))
	}
	if d.Mode() != modemachine.Transitioning {
		t.Fatalf("Mode() = %v, want Transitioning", d.Mode())
	}

	btn.changed = false
	bus.push(dataFrame(OpSNN, 0x01, 0x04))
	d.Process(10)

	if !store.FlexibleMode() {
		t.Fatal("FlexibleMode() should be true after SNN")
	}
	if store.NodeNumber() != 0x0104 {
		t.Fatalf("NodeNumber() = %#x, want 0x0104", store.NodeNumber())
	}
	if len(bus.sent) != 3 {
		t.Fatalf("expected 3 sent frames (RQNN, probe, NNACK), got %d", len(bus.sent))
	}
	if !bus.sent[1].IsProbe() {
		t.Fatalf("expected the second sent frame to be an enumeration probe, got %v", bus.sent[1])
	}
	if bus.sent[2].OpCode() != OpNNACK {
		t.Fatalf("expected NNACK as the third sent frame, got opcode %#x", bus.sent[2].OpCode())
	}
}

func TestEnumerationScenarioPicksLowestGap(t *testing.T) {
	c := clock.NewFake(0)
	store := configstore.NewMemStore()
	bus := &mockDriver{}
	d := New(c, store, bus, Params{8, 0, 0, 0, 0, 0, 0, 0, 0}, NewModuleName("TESTNODE"))

	d.startEnumeration()
	for _, id := range []byte{1, 2, 4, 5} {
		bus.push(frame.New(frame.Encode(frame.DefaultPriority, id), false, false, nil))
	}
	d.Process(10)

	c.Advance(101 * time.Millisecond)
	d.Process(0)

	if store.LocalID() != 3 {
		t.Fatalf("LocalID() = %d, want 3", store.LocalID())
	}
}

func TestIdentifierClashTriggersEnumeration(t *testing.T) {
	d, bus, store := newTestDispatcher()
	store.SetLocalID(5)
	store.SetNodeNumber(260)

	clashID := frame.Encode(frame.DefaultPriority, 5)
	bus.push(frame.New(clashID, false, false, []byte{OpACON, 0x00, 0x64, 0, 0}))
	d.Process(10)

	if !d.flags.EnumRequired {
		t.Fatal("identifier clash should set enum_required for the next tick")
	}

	d.Process(0)
	if !d.enum.InProgress() {
		t.Fatal("enumeration should have started on the next tick")
	}
}

func TestLearnCycleScenario(t *testing.T) {
	d, bus, store := newTestDispatcher()
	store.SetNodeNumber(260)

	bus.push(dataFrame(OpNNLRN, 0x01, 0x04))
	d.Process(10)
	if !d.flags.LearnMode {
		t.Fatal("expected learn_mode to be set after NNLRN")
	}

	bus.push(dataFrame(OpEVLRN, 0x00, 0x0A, 0x00, 0x14, 0x01, 0x77))
	d.Process(10)

	idx := store.FindExisting(10, 20)
	if idx == configstore.NotFound {
		t.Fatal("find_existing(10,20) should locate the learned event")
	}
	v, ok := store.GetEventEV(idx, 1)
	if !ok || v != 0x77 {
		t.Fatalf("GetEventEV(idx,1) = (%d,%v), want (0x77,true)", v, ok)
	}

	last := bus.sent[len(bus.sent)-1]
	if last.OpCode() != OpWRACK {
		t.Fatalf("expected WRACK after EVLRN, got opcode %#x", last.OpCode())
	}

	bus.push(dataFrame(OpEVULN, 0x00, 0x0A, 0x00, 0x14))
	d.Process(10)
	if store.FindExisting(10, 20) != configstore.NotFound {
		t.Fatal("event should be gone after EVULN")
	}
}

func TestModeTimeoutScenario(t *testing.T) {
	c := clock.NewFake(0)
	store := configstore.NewMemStore()
	bus := &mockDriver{}
	d := New(c, store, bus, Params{8, 0, 0, 0, 0, 0, 0, 0, 0}, NewModuleName("TESTNODE"))

	d.mode.BeginTransition()
	c.Advance(30_001 * time.Millisecond)
	d.Process(0)

	if d.Mode() != modemachine.Lean {
		t.Fatalf("Mode() = %v, want Lean after timeout", d.Mode())
	}
}

func TestREVALRespondsWithNodeNumberAndValue(t *testing.T) {
	d, bus, store := newTestDispatcher()
	store.SetNodeNumber(260)

	store.WriteEvent(0, configstore.EventEntry{NodeNumber: 10, EventNumber: 20})
	store.UpdateEventHash(0)
	store.WriteEventEV(0, 1, 0x77)

	bus.push(dataFrame(OpREVAL, 0x01, 0x04, 0, 1))
	d.Process(10)

	last := bus.sent[len(bus.sent)-1]
	want := dataFrame(OpNEVAL, 0x01, 0x04, 0, 1, 0x77)
	if last.OpCode() != OpNEVAL || last.NodeNumber() != 260 || !equalFrameData(last, want) {
		t.Fatalf("NEVAL response = %v, want data %v", last, want)
	}
}

func TestCMDERRCarriesNodeNumber(t *testing.T) {
	d, bus, store := newTestDispatcher()
	store.SetNodeNumber(260)

	bus.push(dataFrame(OpNVRD, 0x01, 0x04, configstore.NumNVs+1))
	d.Process(10)

	last := bus.sent[len(bus.sent)-1]
	if last.OpCode() != OpCMDERR {
		t.Fatalf("expected CMDERR, got opcode %#x", last.OpCode())
	}
	if last.NodeNumber() != 260 {
		t.Fatalf("CMDERR NodeNumber() = %d, want 260", last.NodeNumber())
	}
}

func TestEVLRNEVULNSilentlyDroppedOutsideLearnMode(t *testing.T) {
	d, bus, store := newTestDispatcher()
	store.SetNodeNumber(260)
	// A non-zero local id keeps these id-0 frames from counting as an
	// identifier clash, whose enumeration probe would be sent on the next tick.
	store.SetLocalID(5)

	bus.push(dataFrame(OpEVLRN, 0x00, 0x0A, 0x00, 0x14, 0x01, 0x77))
	d.Process(10)
	if len(bus.sent) != 0 {
		t.Fatalf("EVLRN outside learn mode should not respond, got %d frames", len(bus.sent))
	}
	if store.FindExisting(10, 20) != configstore.NotFound {
		t.Fatal("EVLRN outside learn mode should not learn the event")
	}

	bus.push(dataFrame(OpEVULN, 0x00, 0x0A, 0x00, 0x14))
	d.Process(10)
	if len(bus.sent) != 0 {
		t.Fatalf("EVULN outside learn mode should not respond, got %d frames", len(bus.sent))
	}
}

// TestLearnedEventDispatchesWithWireEVConvention learns an event via the
// EVLRN opcode (evindex=1, matching spec §8 scenario 4) and checks that
// dispatching a matching ACON against it reports that learned value as the
// extended handler's firstEV, not the header slot at evindex 0.
func TestLearnedEventDispatchesWithWireEVConvention(t *testing.T) {
	d, bus, store := newTestDispatcher()
	store.SetNodeNumber(260)

	bus.push(dataFrame(OpNNLRN, 0x01, 0x04))
	d.Process(10)
	bus.push(dataFrame(OpEVLRN, 0x00, 0x0A, 0x00, 0x14, 0x01, 0x77))
	d.Process(10)

	var gotEV byte
	var called bool
	d.Events().SetHandlerEx(func(index byte, nn, en uint16, payload []byte, onEvent bool, firstEV byte) {
		called, gotEV = true, firstEV
	})

	bus.push(frame.New(0, false, false, []byte{OpACON, 0x00, 0x0A, 0x00, 0x14}))
	d.Process(10)

	if !called {
		t.Fatal("extended handler was not invoked for the learned event")
	}
	if gotEV != 0x77 {
		t.Fatalf("firstEV = %#x, want 0x77", gotEV)
	}
}

func equalFrameData(a, b frame.Frame) bool {
	if a.Length != b.Length {
		return false
	}
	ad, bd := a.Data(), b.Data()
	for i := range ad {
		if ad[i] != bd[i] {
			return false
		}
	}
	return true
}

func TestNERDPacesReplies(t *testing.T) {
	d, bus, store := newTestDispatcher()
	store.SetNodeNumber(260)
	for i := 0; i < 3; i++ {
		store.WriteEvent(byte(i), configstore.EventEntry{NodeNumber: 10, EventNumber: uint16(i + 1)})
		store.UpdateEventHash(byte(i))
	}
	var slept []time.Duration
	d.sleep = func(dur time.Duration) { slept = append(slept, dur) }

	bus.push(dataFrame(OpNERD, 0x01, 0x04))
	d.Process(10)

	if len(slept) != 3 {
		t.Fatalf("expected 3 pacing sleeps, got %d", len(slept))
	}
	for _, s := range slept {
		if s < nerdPacing {
			t.Errorf("pacing sleep %v below minimum %v", s, nerdPacing)
		}
	}
}
