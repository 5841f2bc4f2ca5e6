package dispatcher

import (
	"github.com/thermoquad/cbusnode/configstore"
	"github.com/thermoquad/cbusnode/frame"
	"github.com/thermoquad/cbusnode/modemachine"
)

// opcodeHandler implements one row of the operation-code table (spec §4.3).
// A returned CmdErr is turned into a CMDERR response by the dispatch
// wrapper; any other error is treated as silent-drop; nil means the handler
// has already sent (or deliberately withheld) its own response.
type opcodeHandler func(d *Dispatcher, nn, en uint16, f frame.Frame) error

var opcodeTable = map[byte]opcodeHandler{
	OpACON:  handleAccessoryLong,
	OpACOF:  handleAccessoryLong,
	OpARON:  handleAccessoryLong,
	OpAROF:  handleAccessoryLong,
	OpASON:  handleAccessoryShort,
	OpASOF:  handleAccessoryShort,
	OpRQNP:  handleRQNP,
	OpRQNPN: handleRQNPN,
	OpSNN:   handleSNN,
	OpRQNN:  handleRQNN,
	OpCANID: handleCANID,
	OpENUM:  handleENUM,
	OpNVRD:  handleNVRD,
	OpNVSET: handleNVSET,
	OpNNLRN: handleNNLRN,
	OpNNULN: handleNNULN,
	OpEVULN: handleEVULN,
	OpEVLRN: handleEVLRN,
	OpNNCLR: handleNNCLR,
	OpNNEVN: handleNNEVN,
	OpRQEVN: handleRQEVN,
	OpNERD:  handleNERD,
	OpREVAL: handleREVAL,
	OpQNN:   handleQNN,
	OpRQMN:  handleRQMN,
	OpDTXC:  handleDTXC,
	// OpBOOT and OpRSTAT are recognized but intentionally unhandled.
}

// extraPayload returns whatever bytes follow the standard opc+nn+en header,
// or nil if the frame is too short to carry any.
func extraPayload(f frame.Frame) []byte {
	d := f.Data()
	if len(d) <= 5 {
		return nil
	}
	return d[5:]
}

func handleAccessoryLong(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	d.events.Dispatch(nn, en, extraPayload(f), f.OpCode()%2 == 0)
	return nil
}

// handleAccessoryShort handles ASON/ASOF: the short form carries only an
// event number, in the slot the long form uses for the node number, and is
// always looked up against node number 0.
func handleAccessoryShort(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	d.events.Dispatch(0, f.NodeNumber(), extraPayload(f), f.OpCode()%2 == 0)
	return nil
}

func handleRQNP(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	if d.mode.Mode() != modemachine.Transitioning {
		return nil
	}
	data := append([]byte{OpPARAMS}, d.params[1:8]...)
	d.send(frame.New(0, false, false, data))
	return nil
}

func handleRQNPN(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	if nn != d.store.NodeNumber() {
		return nil
	}
	if len(f.Data()) < 4 {
		return nil
	}
	idx := f.Data()[3]
	if idx < 1 || idx > d.params.Count() {
		return ErrParamIndexRange
	}
	resp := frame.New(0, false, false, []byte{OpPARAN, 0, 0, idx, d.params[idx]}).WithNodeNumber(nn)
	d.send(resp)
	return nil
}

func handleSNN(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	if d.mode.Mode() != modemachine.Transitioning {
		return nil
	}
	d.store.SetNodeNumber(nn)
	d.mode.CommitFlexible(d.store)
	d.startEnumeration()
	resp := frame.New(0, false, false, []byte{OpNNACK, 0, 0}).WithNodeNumber(nn)
	d.send(resp)
	return nil
}

func handleRQNN(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	if d.mode.Mode() != modemachine.Transitioning {
		return nil
	}
	d.mode.Abort()
	resp := frame.New(0, false, false, []byte{OpNNACK, 0, 0}).WithNodeNumber(d.store.NodeNumber())
	d.send(resp)
	return nil
}

func handleCANID(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	if nn != d.store.NodeNumber() {
		return nil
	}
	if len(f.Data()) < 4 {
		return nil
	}
	newID := f.Data()[3]
	if newID < 1 || newID > 99 {
		return ErrInvalidIdentifier
	}
	d.store.SetLocalID(newID)
	return nil
}

func handleENUM(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	if nn != d.store.NodeNumber() {
		return nil
	}
	if f.ID.LocalID() == d.store.LocalID() {
		return nil
	}
	if d.enum.InProgress() {
		return nil
	}
	d.startEnumeration()
	return nil
}

func handleNVRD(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	if nn != d.store.NodeNumber() {
		return nil
	}
	if len(f.Data()) < 4 {
		return nil
	}
	idx := f.Data()[3]
	v, ok := d.store.ReadNV(idx)
	if !ok {
		return ErrNVIndexRange
	}
	resp := frame.New(0, false, false, []byte{OpNVANS, 0, 0, idx, v}).WithNodeNumber(nn)
	d.send(resp)
	return nil
}

func handleNVSET(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	if nn != d.store.NodeNumber() {
		return nil
	}
	if len(f.Data()) < 5 {
		return nil
	}
	idx := f.Data()[3]
	val := f.Data()[4]
	if !d.store.WriteNV(idx, val) {
		return ErrNVIndexRange
	}
	d.sendWrack(nn)
	return nil
}

func handleNNLRN(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	if nn != d.store.NodeNumber() {
		return nil
	}
	d.flags.LearnMode = true
	d.params.SetLearnMode(true)
	return nil
}

func handleNNULN(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	if nn != d.store.NodeNumber() {
		return nil
	}
	d.flags.LearnMode = false
	d.params.SetLearnMode(false)
	return nil
}

func handleEVULN(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	if !d.flags.LearnMode {
		return nil
	}
	if !d.events.Unlearn(nn, en) {
		return ErrNVIndexRange
	}
	d.sendWrack(d.store.NodeNumber())
	return nil
}

func handleEVLRN(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	if !d.flags.LearnMode {
		return nil
	}
	if len(f.Data()) < 7 {
		return nil
	}
	evIndex := f.Data()[5]
	evValue := f.Data()[6]
	if !d.events.Learn(nn, en, evIndex, evValue) {
		return ErrNVIndexRange
	}
	d.sendWrack(d.store.NodeNumber())
	return nil
}

func handleNNCLR(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	if !d.flags.LearnMode || nn != d.store.NodeNumber() {
		return nil
	}
	d.store.ClearEventHashTable()
	d.sendWrack(nn)
	return nil
}

func handleNNEVN(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	if nn != d.store.NodeNumber() {
		return nil
	}
	count := configstore.MaxEvents - d.store.NumEvents()
	resp := frame.New(0, false, false, []byte{OpEVNLF, 0, 0, byte(count)}).WithNodeNumber(nn)
	d.send(resp)
	return nil
}

func handleRQEVN(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	if nn != d.store.NodeNumber() {
		return nil
	}
	count := d.store.NumEvents()
	resp := frame.New(0, false, false, []byte{OpNUMEV, 0, 0, byte(count)}).WithNodeNumber(nn)
	d.send(resp)
	return nil
}

func handleNERD(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	if nn != d.store.NodeNumber() {
		return nil
	}
	for i := 0; i < configstore.MaxEvents; i++ {
		entry, ok := d.store.GetEntry(byte(i))
		if !ok || entry.Empty() {
			continue
		}
		payload := []byte{
			OpENRSP,
			byte(entry.NodeNumber >> 8), byte(entry.NodeNumber),
			byte(entry.EventNumber >> 8), byte(entry.EventNumber),
			byte(i),
		}
		d.send(frame.New(0, false, false, payload))
		d.sleep(nerdPacing)
	}
	return nil
}

func handleREVAL(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	if nn != d.store.NodeNumber() {
		return nil
	}
	if len(f.Data()) < 5 {
		return nil
	}
	idx := f.Data()[3]
	evIdx := f.Data()[4]
	entry, ok := d.store.GetEntry(idx)
	if !ok || entry.Empty() {
		return ErrInvalidEventIndex
	}
	v, ok := d.store.GetEventEV(idx, evIdx)
	if !ok {
		return ErrInvalidEventIndex
	}
	resp := frame.New(0, false, false, []byte{OpNEVAL, 0, 0, idx, evIdx, v}).WithNodeNumber(nn)
	d.send(resp)
	return nil
}

func handleQNN(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	if d.store.NodeNumber() == 0 {
		return nil
	}
	resp := frame.New(0, false, false, []byte{OpPNN, 0, 0, d.params[1], d.params[3], d.params[8]}).WithNodeNumber(d.store.NodeNumber())
	d.send(resp)
	return nil
}

func handleRQMN(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	if d.mode.Mode() != modemachine.Transitioning {
		return nil
	}
	data := append([]byte{OpNAME}, d.name[:]...)
	d.send(frame.New(0, false, false, data))
	return nil
}

func handleDTXC(d *Dispatcher, nn, en uint16, f frame.Frame) error {
	if d.longMsg != nil {
		d.longMsg.OnFragment(f)
	}
	return nil
}
