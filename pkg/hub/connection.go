// Package hub implements the connection manager and the relay orchestration
// for runtime WebSocket clients.
package hub

import (
	"sync"
)

const defaultSendBuffer = 64

// Connection tracks one live runtime client. WorkflowID and Authenticated
// are mutated only by the connection's own read loop, so they carry no lock;
// the outbound channel is guarded because broadcasts arrive from other
// goroutines.
type Connection struct {
	ID            string
	WorkflowID    string
	Namespace     string
	Metadata      map[string]any
	Authenticated bool

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// NewConnection creates an unauthenticated connection with a bounded
// outbound buffer.
func NewConnection(id string) *Connection {
	return &Connection{
		ID:   id,
		send: make(chan []byte, defaultSendBuffer),
	}
}

// Send queues a message for the connection's write pump without blocking.
// Returns false when the buffer is full or the connection is closed; slow
// viewers drop messages rather than stalling the relay.
func (c *Connection) Send(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// Outbox exposes the outbound queue to the transport write pump.
func (c *Connection) Outbox() <-chan []byte {
	return c.send
}

// CloseSend shuts the outbound queue. Idempotent.
func (c *Connection) CloseSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.send)
}
