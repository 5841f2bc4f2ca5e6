// Package eventdispatch implements the learn/lookup contract that resolves
// incoming accessory events against the stored event table and invokes the
// registered user callback (spec §4.4).
//
// Grounded on original_source/src/CBUS.cpp's event handler dispatch and its
// EVLRN/EVULN opcode handlers.
package eventdispatch

import "github.com/thermoquad/cbusnode/configstore"

// Handler is the simple event callback form (spec §6): it receives the
// matched table index and the event's numbers and payload, without the
// polarity or ev-var that HandlerEx adds.
type Handler func(index byte, nn, en uint16, payload []byte)

// HandlerEx is the extended callback form, additionally receiving the
// polarity bit and the first event variable (0 when no EVs are configured).
type HandlerEx func(index byte, nn, en uint16, payload []byte, onEvent bool, firstEV byte)

// Dispatcher resolves accessory events against a ConfigStore and invokes
// whichever user callback is registered.
type Dispatcher struct {
	store     configstore.ConfigStore
	handler   Handler
	handlerEx HandlerEx
}

// New creates an event Dispatcher bound to store.
func New(store configstore.ConfigStore) *Dispatcher {
	return &Dispatcher{store: store}
}

// SetHandler registers the simple callback form.
func (d *Dispatcher) SetHandler(h Handler) {
	d.handler = h
}

// SetHandlerEx registers the extended callback form.
func (d *Dispatcher) SetHandlerEx(h HandlerEx) {
	d.handlerEx = h
}

// Dispatch resolves (nn, en) against the store and invokes the registered
// callback (preferring the extended form if both are set). onEvent is the
// op's on/off polarity (true for the "on" opcodes: ACON*, ARON, ASON*).
// payload is the frame's data[5:] tail (additional event variables, if any).
// It is a no-op if no handler is registered or no matching entry is found.
func (d *Dispatcher) Dispatch(nn, en uint16, payload []byte, onEvent bool) {
	index := d.store.FindExisting(nn, en)
	if index == configstore.NotFound {
		return
	}
	if d.handlerEx != nil {
		firstEV, _ := d.store.GetEventEV(index, 1)
		d.handlerEx(index, nn, en, payload, onEvent, firstEV)
		return
	}
	if d.handler != nil {
		d.handler(index, nn, en, payload)
	}
}

// Learn implements the EVLRN opcode (spec §4.4): find-or-allocate a slot for
// (nn,en), persist the header on the first or second ev-var write, then
// persist the given ev-var. Returns false if the table is full.
func (d *Dispatcher) Learn(nn, en uint16, evIndex byte, evValue byte) bool {
	index := d.store.FindExisting(nn, en)
	if index == configstore.NotFound {
		index = d.store.FindEmptySlot()
	}
	if int(index) >= configstore.MaxEvents {
		return false
	}

	if evIndex < 2 {
		entry, _ := d.store.ReadEvent(index)
		entry.NodeNumber, entry.EventNumber = nn, en
		d.store.WriteEvent(index, entry)
		d.store.UpdateEventHash(index)
	}
	d.store.WriteEventEV(index, evIndex, evValue)
	return true
}

// Unlearn implements the EVULN opcode: clear the entry for (nn,en) if
// present. Returns false if no matching entry exists.
func (d *Dispatcher) Unlearn(nn, en uint16) bool {
	index := d.store.FindExisting(nn, en)
	if index == configstore.NotFound {
		return false
	}
	return d.store.ClearEvent(index)
}
