package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

const controlDeadline = time.Second

// outFrame is one queued socket write.
type outFrame struct {
	kind     int
	payload  []byte
	deadline time.Duration
}

func textFrame(data []byte) outFrame {
	return outFrame{kind: websocket.TextMessage, payload: data}
}

func closeFrame(code int, reason string) outFrame {
	return outFrame{kind: websocket.CloseMessage, payload: websocket.FormatCloseMessage(code, reason)}
}

func (f outFrame) control() bool {
	switch f.kind {
	case websocket.CloseMessage, websocket.PingMessage, websocket.PongMessage:
		return true
	}
	return false
}

// writeTo writes the frame. Control frames are bounded by their deadline.
func (f outFrame) writeTo(conn *websocket.Conn) error {
	if !f.control() {
		return conn.WriteMessage(f.kind, f.payload)
	}
	d := f.deadline
	if d == 0 {
		d = controlDeadline
	}
	return conn.WriteControl(f.kind, f.payload, time.Now().Add(d))
}

// carriesEvents reports whether an inbound frame of kind holds an event.
func carriesEvents(kind int) bool {
	return kind == websocket.TextMessage || kind == websocket.BinaryMessage
}
