package configstore

// eventKey is the hash-table accelerator's key shape: find_existing(nn,en)
// must return an index < MaxEvents iff a matching entry exists, so a plain
// Go map from (nn,en) to table index satisfies that contract directly.
type eventKey struct {
	nn uint16
	en uint16
}

// MemStore is a process-lifetime, in-memory ConfigStore. It is the reference
// implementation used by tests and by the `sim` CLI command; real nodes are
// expected to back ConfigStore with flash/EEPROM, which is out of scope here
// (spec §1).
type MemStore struct {
	nodeNumber   uint16
	localID      byte
	flexibleMode bool

	nvs    [NumNVs + 1]byte // index 0 unused; NVs are indexed from 1
	events [MaxEvents]EventEntry
	hash   map[eventKey]byte
}

// NewMemStore returns an empty MemStore with a freshly built hash table.
func NewMemStore() *MemStore {
	s := &MemStore{}
	s.rebuildHash()
	return s
}

func (s *MemStore) rebuildHash() {
	s.hash = make(map[eventKey]byte, MaxEvents)
	for i, e := range s.events {
		if !e.Empty() {
			s.hash[eventKey{e.NodeNumber, e.EventNumber}] = byte(i)
		}
	}
}

func (s *MemStore) NodeNumber() uint16        { return s.nodeNumber }
func (s *MemStore) SetNodeNumber(nn uint16)   { s.nodeNumber = nn }
func (s *MemStore) LocalID() byte             { return s.localID }
func (s *MemStore) SetLocalID(id byte)        { s.localID = id }
func (s *MemStore) FlexibleMode() bool        { return s.flexibleMode }
func (s *MemStore) SetFlexibleMode(f bool)    { s.flexibleMode = f }

func (s *MemStore) ReadNV(index byte) (byte, bool) {
	if index < 1 || int(index) > NumNVs {
		return 0, false
	}
	return s.nvs[index], true
}

func (s *MemStore) WriteNV(index byte, value byte) bool {
	if index < 1 || int(index) > NumNVs {
		return false
	}
	s.nvs[index] = value
	return true
}

func (s *MemStore) NumEvents() int {
	n := 0
	for _, e := range s.events {
		if !e.Empty() {
			n++
		}
	}
	return n
}

func (s *MemStore) FindExisting(nn, en uint16) byte {
	if idx, ok := s.hash[eventKey{nn, en}]; ok {
		return idx
	}
	return NotFound
}

func (s *MemStore) FindEmptySlot() byte {
	for i, e := range s.events {
		if e.Empty() {
			return byte(i)
		}
	}
	return NotFound
}

func (s *MemStore) GetEntry(index byte) (EventEntry, bool) {
	return s.ReadEvent(index)
}

func (s *MemStore) ReadEvent(index byte) (EventEntry, bool) {
	if int(index) >= MaxEvents {
		return EventEntry{}, false
	}
	return s.events[index], true
}

func (s *MemStore) WriteEvent(index byte, entry EventEntry) bool {
	if int(index) >= MaxEvents {
		return false
	}
	s.events[index] = entry
	return true
}

func (s *MemStore) ClearEvent(index byte) bool {
	if int(index) >= MaxEvents {
		return false
	}
	old := s.events[index]
	s.events[index] = EventEntry{}
	if !old.Empty() {
		delete(s.hash, eventKey{old.NodeNumber, old.EventNumber})
	}
	return true
}

func (s *MemStore) GetEventEV(index byte, evIndex byte) (byte, bool) {
	if int(index) >= MaxEvents || int(evIndex) >= NumEVs {
		return 0, false
	}
	return s.events[index].EVs[evIndex], true
}

func (s *MemStore) WriteEventEV(index byte, evIndex byte, value byte) bool {
	if int(index) >= MaxEvents || int(evIndex) >= NumEVs {
		return false
	}
	s.events[index].EVs[evIndex] = value
	return true
}

func (s *MemStore) UpdateEventHash(index byte) {
	if int(index) >= MaxEvents {
		return
	}
	e := s.events[index]
	if e.Empty() {
		return
	}
	s.hash[eventKey{e.NodeNumber, e.EventNumber}] = index
}

func (s *MemStore) ClearEventHashTable() {
	for i := range s.events {
		s.events[i] = EventEntry{}
	}
	s.hash = make(map[eventKey]byte, MaxEvents)
}

var _ ConfigStore = (*MemStore)(nil)
