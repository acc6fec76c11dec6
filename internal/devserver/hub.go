package devserver

import (
	"sync"

	"github.com/gorilla/websocket"

	"console_go/internal/domain"
)

// Hub manages the websocket connections that joined the monitoring room and
// broadcasts monitor events to them.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Join adds a connection to the monitoring room.
func (h *Hub) Join(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

// Leave removes a connection from the monitoring room.
func (h *Hub) Leave(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// Broadcast sends a monitor event to every joined connection. Connections
// that fail to write are closed; removal happens on their next Leave or read
// error.
//
// The lock is exclusive: gorilla connections allow only one writer at a time,
// and broadcasts arrive concurrently from the HTTP handlers and the traffic
// generator.
func (h *Hub) Broadcast(ev domain.Event) {
	payload := map[string]any{
		"type":            ev.Kind.String(),
		"conversation_id": ev.ConversationID,
	}
	if ev.PhoneLineID != nil {
		payload["phone_line_id"] = *ev.PhoneLineID
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteJSON(payload); err != nil {
			conn.Close()
		}
	}
}
