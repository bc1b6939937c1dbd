package session

import (
	"time"
)

// SocketSender is the handle to an open live-socket connection. The registry
// treats it as opaque; the gateway provides the real implementation.
type SocketSender interface {
	// Send queues one message for delivery. It returns an error if the
	// connection is closed or cannot accept the message.
	Send(data []byte) error
}

// Session is the hub's record of one plugin instance and how to reach it.
// "Registered but not live" is a valid state: the socket handle comes and
// goes with the connection while the record survives until unregistration.
type Session struct {
	ID            string            `json:"id"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CallbackURL   string            `json:"callbackUrl,omitempty"`
	LastHeartbeat time.Time         `json:"lastHeartbeat"`
	Active        bool              `json:"active"`

	socket SocketSender
}

// Socket returns the attached live-connection handle, or nil if the session
// has no open socket.
func (s *Session) Socket() SocketSender {
	return s.socket
}

// Live reports whether the session currently has an open socket.
func (s *Session) Live() bool {
	return s.socket != nil
}

// clone returns a copy safe to hand outside the registry lock. The socket
// handle is shared (it is the connection itself); the metadata map is not.
func (s *Session) clone() *Session {
	c := *s
	if len(s.Metadata) > 0 {
		c.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
