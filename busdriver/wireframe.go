package busdriver

import "github.com/thermoquad/cbusnode/frame"

// Wire framing constants for the byte-stream-backed drivers (serial,
// websocket). A real CAN controller needs no such framing since the
// hardware delimits frames itself, but go.bug.st/serial and
// gorilla/websocket hand us a raw byte stream, so every frame is
// byte-stuffed and CRC-protected the way the teacher's
// pkg/helios_protocol/decoder.go frames its packets — adapted here to
// envelope a bus frame.Frame instead of a Helios Packet.
const (
	startByte byte = 0x7E
	endByte   byte = 0x7F
	escByte   byte = 0x7D
	escXor    byte = 0x20
)

const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

const (
	flagExtended byte = 1 << 0
	flagRemote   byte = 1 << 1
)

// calculateCRC computes the CRC-16-CCITT checksum of data, matching
// pkg/helios_protocol/crc.go's CalculateCRC.
func calculateCRC(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func stuffBytes(data []byte) []byte {
	out := make([]byte, 0, len(data)+4)
	for _, b := range data {
		if b == startByte || b == endByte || b == escByte {
			out = append(out, escByte, b^escXor)
		} else {
			out = append(out, b)
		}
	}
	return out
}

// encodeWireFrame serializes f into a framed, byte-stuffed, CRC-protected
// wire representation suitable for a raw byte-stream transport.
func encodeWireFrame(f frame.Frame) []byte {
	data := f.Data()
	flags := byte(0)
	if f.Extended {
		flags |= flagExtended
	}
	if f.Remote {
		flags |= flagRemote
	}

	body := make([]byte, 0, 4+len(data))
	body = append(body, byte(len(data)), byte(f.ID>>8), byte(f.ID), flags)
	body = append(body, data...)

	crc := calculateCRC(body)
	body = append(body, byte(crc>>8), byte(crc))

	out := make([]byte, 0, len(body)*2+2)
	out = append(out, startByte)
	out = append(out, stuffBytes(body)...)
	out = append(out, endByte)
	return out
}

// decoder states, matching the shape (not the literal constants) of
// pkg/helios_protocol/decoder.go's STATE_* sequence.
const (
	stateIdle = iota
	stateLength
	stateIDHi
	stateIDLo
	stateFlags
	statePayload
	stateCRC1
	stateCRC2
)

// wireDecoder reassembles frame.Frame values from a raw byte stream,
// adapted from pkg/helios_protocol/decoder.go's Decoder.DecodeByte state
// machine.
type wireDecoder struct {
	state      int
	escapeNext bool
	length     byte
	idHi       byte
	flags      byte
	payload    []byte
	body       []byte
}

func newWireDecoder() *wireDecoder {
	return &wireDecoder{}
}

func (d *wireDecoder) reset() {
	d.state = stateIdle
	d.escapeNext = false
	d.payload = nil
	d.body = d.body[:0]
}

// decodeByte feeds one raw byte through the decoder. It returns a completed
// frame, or ok=false if the frame is not yet complete (or the byte was
// absorbed by framing/escaping). err is non-nil on a CRC mismatch or
// malformed framing; the caller should drop the byte stream state and
// continue, exactly as spec §7's silent-drop classification requires at the
// dispatcher layer (this decoder sits below that layer).
func (d *wireDecoder) decodeByte(b byte) (frame.Frame, bool, error) {
	original := b
	if b == escByte && !d.escapeNext {
		d.escapeNext = true
		return frame.Frame{}, false, nil
	}
	if d.escapeNext {
		b ^= escXor
		d.escapeNext = false
	}

	if original == startByte && !d.escapeNext {
		d.reset()
		d.state = stateLength
		return frame.Frame{}, false, nil
	}
	if original == endByte && !d.escapeNext {
		defer d.reset()
		if d.state != stateCRC2 {
			return frame.Frame{}, false, errUnexpectedEnd
		}
		calculated := calculateCRC(d.body[:len(d.body)-2])
		received := uint16(d.body[len(d.body)-2])<<8 | uint16(d.body[len(d.body)-1])
		if calculated != received {
			return frame.Frame{}, false, errCRCMismatch
		}
		id := frame.Identifier(uint16(d.idHi)<<8 | uint16(d.body[2]))
		f := frame.New(id, d.flags&flagExtended != 0, d.flags&flagRemote != 0, d.payload)
		return f, true, nil
	}

	d.body = append(d.body, b)

	switch d.state {
	case stateIdle:
		// waiting for start byte
	case stateLength:
		if b > frame.MaxPayload {
			d.reset()
			return frame.Frame{}, false, errInvalidLength
		}
		d.length = b
		d.payload = make([]byte, 0, b)
		d.state = stateIDHi
	case stateIDHi:
		d.idHi = b
		d.state = stateIDLo
	case stateIDLo:
		d.state = stateFlags
	case stateFlags:
		d.flags = b
		if d.length == 0 {
			d.state = stateCRC1
		} else {
			d.state = statePayload
		}
	case statePayload:
		d.payload = append(d.payload, b)
		if len(d.payload) >= int(d.length) {
			d.state = stateCRC1
		}
	case stateCRC1:
		d.state = stateCRC2
	case stateCRC2:
		// wait for end byte
	default:
		d.reset()
		return frame.Frame{}, false, errInvalidState
	}
	return frame.Frame{}, false, nil
}
