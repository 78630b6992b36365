package realtime

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the bus uses. Tests substitute
// in-memory implementations.
type Conn interface {
	WriteJSON(v any) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

// client is one authenticated websocket connection. Writes are
// serialized through mu because gorilla connections do not allow
// concurrent writers.
type client struct {
	conn   Conn
	userID string
	role   string

	mu sync.Mutex
}

func (c *client) send(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(env)
}

// clientKey identifies a registry entry. One live connection is kept
// per user and role; a newer connection replaces the older one.
type clientKey struct {
	userID string
	role   string
}
