package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrConnClosed is returned by Send once the connection's write side has
// shut down.
var ErrConnClosed = errors.New("ws: connection closed")

// errSendBufferFull means the peer cannot keep up; the dispatcher treats it
// as a socket delivery failure.
var errSendBufferFull = errors.New("ws: send buffer full")

// conn wraps one websocket connection with a buffered send channel and a
// single writer goroutine, so the dispatcher and the gateway can both push
// messages without interleaving writes.
type conn struct {
	ws   *websocket.Conn
	send chan []byte

	done     chan struct{}
	downOnce sync.Once
}

func newConn(ws *websocket.Conn) *conn {
	c := &conn{
		ws:   ws,
		send: make(chan []byte, 64),
		done: make(chan struct{}),
	}
	go c.writePump()
	return c
}

// Send queues one message for delivery. It fails fast: a closed connection
// or a full buffer is an error, never a block.
func (c *conn) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return errSendBufferFull
	}
}

func (c *conn) writePump() {
	defer c.ws.Close()
	for {
		select {
		case msg := <-c.send:
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.shutdown()
				return
			}
		case <-c.done:
			return
		}
	}
}

// shutdown moves the connection to its terminal state: Send starts failing,
// the write pump exits, and the underlying socket closes (which also
// unblocks the reader).
func (c *conn) shutdown() {
	c.downOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}
