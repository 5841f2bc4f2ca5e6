package busdriver

import (
	"sync"
	"time"

	"github.com/thermoquad/cbusnode/frame"
	"go.bug.st/serial"
)

// Serial is a Driver backed by a physical or USB-CAN-adapter serial port,
// wrapping go.bug.st/serial exactly as the teacher's cmd/connection.go
// SerialConnection does, with the wireframe codec layered on top to carry
// bus Frames over the raw byte stream.
type Serial struct {
	port serial.Port

	mu      sync.Mutex
	decoder *wireDecoder
	pending []frame.Frame
}

// OpenSerial opens portName at baud and returns a Driver. Callers own the
// returned Driver's lifetime and must Close it.
func OpenSerial(portName string, baud int) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, err
	}
	// A short read timeout keeps Recv from blocking on an idle port.
	if err := port.SetReadTimeout(time.Millisecond); err != nil {
		port.Close()
		return nil, err
	}
	return &Serial{port: port, decoder: newWireDecoder()}, nil
}

// Send implements Driver.
func (s *Serial) Send(f frame.Frame) error {
	_, err := s.port.Write(encodeWireFrame(f))
	return err
}

// Recv implements Driver. It reads whatever bytes are currently available
// from the port and decodes as many complete frames as it can, returning the
// first one; the rest are queued for subsequent Recv calls. Decode errors
// (CRC mismatch, malformed framing) are dropped silently, matching spec §7's
// silent-drop classification for malformed input below the dispatcher layer.
func (s *Serial) Recv() (frame.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) > 0 {
		f := s.pending[0]
		s.pending = s.pending[1:]
		return f, true
	}

	buf := make([]byte, 256)
	n, err := s.port.Read(buf)
	if err != nil || n == 0 {
		return frame.Frame{}, false
	}

	for i := 0; i < n; i++ {
		f, ok, _ := s.decoder.decodeByte(buf[i])
		if ok {
			s.pending = append(s.pending, f)
		}
	}

	if len(s.pending) == 0 {
		return frame.Frame{}, false
	}
	f := s.pending[0]
	s.pending = s.pending[1:]
	return f, true
}

// Close implements Driver.
func (s *Serial) Close() error {
	return s.port.Close()
}

var _ Driver = (*Serial)(nil)
