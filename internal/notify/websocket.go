package notify

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WSConn adapts a gorilla connection to Conn with serialised writes.
type WSConn struct {
	conn         *websocket.Conn
	mu           sync.Mutex
	writeTimeout time.Duration
}

// NewWSConn wraps conn. A zero writeTimeout disables write deadlines.
func NewWSConn(conn *websocket.Conn, writeTimeout time.Duration) *WSConn {
	return &WSConn{conn: conn, writeTimeout: writeTimeout}
}

func (c *WSConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteJSON(v)
}

func (c *WSConn) Close() error {
	return c.conn.Close()
}

// ServeWS upgrades the request, registers the connection for sessionID and
// drains inbound frames until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string, writeTimeout time.Duration) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Str("session_id", sessionID).Msg("websocket upgrade failed")
		return
	}
	conn := NewWSConn(raw, writeTimeout)
	h.Connect(sessionID, conn)
	defer func() {
		h.Disconnect(sessionID, conn)
		_ = conn.Close()
	}()

	for {
		if _, _, err := raw.ReadMessage(); err != nil {
			return
		}
	}
}
