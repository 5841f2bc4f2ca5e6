package busdriver

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/thermoquad/cbusnode/frame"
)

// WebSocket is a Driver backed by a gorilla/websocket connection, used when
// a node's bus is relayed through a bridge server rather than a local serial
// port. Mirrors the teacher's cmd/connection.go WebSocketConnection: binary
// messages only, buffered partial reads, and a sticky "closed" flag so a
// failed read doesn't spin.
type WebSocket struct {
	conn   *websocket.Conn
	closed bool

	mu      sync.Mutex
	decoder *wireDecoder
	pending []frame.Frame
}

// NewWebSocket wraps an already-dialed *websocket.Conn as a Driver.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{conn: conn, decoder: newWireDecoder()}
}

// Send implements Driver.
func (w *WebSocket) Send(f frame.Frame) error {
	if w.closed {
		return ErrClosed
	}
	return w.conn.WriteMessage(websocket.BinaryMessage, encodeWireFrame(f))
}

// Recv implements Driver. It reads one binary message (skipping any other
// message types) and decodes as many frames as that message yields.
func (w *WebSocket) Recv() (frame.Frame, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return frame.Frame{}, false
	}

	if len(w.pending) > 0 {
		f := w.pending[0]
		w.pending = w.pending[1:]
		return f, true
	}

	for {
		mt, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return frame.Frame{}, false
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		for _, b := range data {
			f, ok, _ := w.decoder.decodeByte(b)
			if ok {
				w.pending = append(w.pending, f)
			}
		}
		break
	}

	if len(w.pending) == 0 {
		return frame.Frame{}, false
	}
	f := w.pending[0]
	w.pending = w.pending[1:]
	return f, true
}

// Close implements Driver.
func (w *WebSocket) Close() error {
	w.closed = true
	return w.conn.Close()
}

var _ Driver = (*WebSocket)(nil)
