package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"messenger-service/internal/models"
)

// Conn adapts a gorilla websocket connection into a relay channel. Writes are
// serialized: fan-out and error acknowledgments may push concurrently and the
// underlying connection allows only one writer.
type Conn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewConn wraps an upgraded websocket connection.
func NewConn(conn *websocket.Conn) *Conn {
	return &Conn{conn: conn}
}

// Send marshals the event and writes it as a single text frame.
func (c *Conn) Send(event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// ReadMessage reads the next frame from the client.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, payload, err := c.conn.ReadMessage()
	return payload, err
}
