// Package notify keeps one push connection per session and delivers task
// updates on a deliver-or-drop basis: a failed write drops the connection,
// nothing is retried or buffered.
package notify

import (
	"sync"

	"github.com/rs/zerolog"
)

// Conn is a push connection. WriteJSON may be called from several
// goroutines; implementations serialise their own writes.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Hub maps session ids to their current connection.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]Conn
	log   zerolog.Logger

	// OnDrop, when set, is called after a failed write removed a connection.
	OnDrop func(sessionID string)
}

// NewHub builds an empty registry.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		conns: make(map[string]Conn),
		log:   log.With().Str("component", "notify").Logger(),
	}
}

// Connect registers conn for the session. A previous connection for the same
// session is replaced and closed.
func (h *Hub) Connect(sessionID string, conn Conn) {
	h.mu.Lock()
	prev := h.conns[sessionID]
	h.conns[sessionID] = conn
	h.mu.Unlock()

	if prev != nil && prev != conn {
		_ = prev.Close()
	}
	h.log.Debug().Str("session_id", sessionID).Msg("connection registered")
}

// Disconnect removes the session's entry if it still points at conn.
func (h *Hub) Disconnect(sessionID string, conn Conn) {
	if h.remove(sessionID, conn) {
		h.log.Debug().Str("session_id", sessionID).Msg("connection closed")
	}
}

// Send delivers msg to the session's connection, if any. Write failures drop
// the connection and are not reported to the caller.
func (h *Hub) Send(sessionID string, msg any) {
	h.mu.RLock()
	conn, ok := h.conns[sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	if err := conn.WriteJSON(msg); err != nil {
		if h.remove(sessionID, conn) {
			_ = conn.Close()
			h.log.Debug().Err(err).Str("session_id", sessionID).Msg("dropping connection after failed write")
			if h.OnDrop != nil {
				h.OnDrop(sessionID)
			}
		}
	}
}

// Active returns the number of registered connections.
func (h *Hub) Active() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) remove(sessionID string, conn Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.conns[sessionID]; ok && cur == conn {
		delete(h.conns, sessionID)
		return true
	}
	return false
}
