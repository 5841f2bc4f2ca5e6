package eventdispatch

import (
	"testing"

	"github.com/thermoquad/cbusnode/configstore"
)

func TestLearnThenRevalRoundTrip(t *testing.T) {
	store := configstore.NewMemStore()
	d := New(store)

	if ok := d.Learn(10, 20, 1, 0x77); !ok {
		t.Fatal("Learn() should succeed on a fresh store")
	}

	idx := store.FindExisting(10, 20)
	if idx == configstore.NotFound {
		t.Fatal("FindExisting should locate the learned event")
	}
	v, ok := store.GetEventEV(idx, 1)
	if !ok || v != 0x77 {
		t.Fatalf("GetEventEV(idx, 1) = (%d, %v), want (0x77, true)", v, ok)
	}
}

func TestUnlearnRemovesEvent(t *testing.T) {
	store := configstore.NewMemStore()
	d := New(store)
	d.Learn(10, 20, 1, 0x77)

	if ok := d.Unlearn(10, 20); !ok {
		t.Fatal("Unlearn() should succeed for a known event")
	}
	if store.FindExisting(10, 20) != configstore.NotFound {
		t.Fatal("event should be gone after Unlearn")
	}
	if d.Unlearn(10, 20) {
		t.Fatal("Unlearn() on an already-removed event should fail")
	}
}

func TestLearnHeaderWrittenOnceAcrossEVs(t *testing.T) {
	store := configstore.NewMemStore()
	d := New(store)

	d.Learn(10, 20, 0, 0x01)
	d.Learn(10, 20, 1, 0x02)
	d.Learn(10, 20, 2, 0x03) // evIndex >= 2: header must not be re-persisted with garbage

	idx := store.FindExisting(10, 20)
	if idx == configstore.NotFound {
		t.Fatal("event should exist")
	}
	entry, _ := store.ReadEvent(idx)
	if entry.NodeNumber != 10 || entry.EventNumber != 20 {
		t.Fatalf("entry header = (%d,%d), want (10,20)", entry.NodeNumber, entry.EventNumber)
	}
	for i, want := range []byte{0x01, 0x02, 0x03} {
		v, _ := store.GetEventEV(idx, byte(i))
		if v != want {
			t.Errorf("EV[%d] = %#x, want %#x", i, v, want)
		}
	}
}

func TestLearnFailsWhenTableFull(t *testing.T) {
	store := configstore.NewMemStore()
	d := New(store)
	for i := 0; i < configstore.MaxEvents; i++ {
		if !d.Learn(uint16(i), 1, 0, 0) {
			t.Fatalf("Learn() unexpectedly failed at entry %d", i)
		}
	}
	if d.Learn(9999, 1, 0, 0) {
		t.Fatal("Learn() should fail once the table is full")
	}
}

func TestDispatchInvokesExtendedHandler(t *testing.T) {
	store := configstore.NewMemStore()
	d := New(store)
	// evIndex 1 is the first configured ev-var on the wire (spec §8 scenario 4's
	// EVLRN nn=10 en=20 evindex=1 evval=0x77 convention).
	d.Learn(10, 20, 1, 0x55)

	var gotIndex byte
	var gotOn bool
	var gotEV byte
	d.SetHandlerEx(func(index byte, nn, en uint16, payload []byte, onEvent bool, firstEV byte) {
		gotIndex, gotOn, gotEV = index, onEvent, firstEV
	})

	idx := store.FindExisting(10, 20)
	d.Dispatch(10, 20, nil, true)

	if gotIndex != idx || !gotOn || gotEV != 0x55 {
		t.Fatalf("handlerEx called with (%d,%v,%#x), want (%d,true,0x55)", gotIndex, gotOn, gotEV, idx)
	}
}

func TestDispatchNoOpWhenNotFound(t *testing.T) {
	store := configstore.NewMemStore()
	d := New(store)
	called := false
	d.SetHandler(func(byte, uint16, uint16, []byte) { called = true })
	d.Dispatch(1, 2, nil, true)
	if called {
		t.Fatal("handler should not be invoked for an unknown event")
	}
}
