package handler

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mrblmoore/hannibal-ai/internal/loop"
)

// AllCommanders subscribes a connection to every event.
const AllCommanders = "*"

// WSEvent is the envelope for all WebSocket messages.
type WSEvent struct {
	Type      string `json:"type"`
	Commander string `json:"commander,omitempty"`
	Data      any    `json:"data"`
}

// ClientMessage is the envelope for messages sent from the client.
type ClientMessage struct {
	Action    string `json:"action"` // "subscribe" or "unsubscribe"
	Commander string `json:"commander"`
}

// WSConn wraps a WebSocket connection with its subject and outbound queue.
type WSConn struct {
	conn    *websocket.Conn
	subject string
	send    chan []byte
}

// Hub fans loop events out to feed connections, filtered by commander.
type Hub struct {
	mu          sync.RWMutex
	connections map[*WSConn]bool
	commanders  map[string]map[*WSConn]bool // commander id or AllCommanders -> connections
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*WSConn]bool),
		commanders:  make(map[string]map[*WSConn]bool),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

// Unregister removes a connection and all its subscriptions.
func (h *Hub) Unregister(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connections[c] {
		return
	}
	delete(h.connections, c)
	for id, conns := range h.commanders {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.commanders, id)
		}
	}
	close(c.send)
}

// Subscribe adds a connection to a commander's events.
func (h *Hub) Subscribe(c *WSConn, commander string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.commanders[commander] == nil {
		h.commanders[commander] = make(map[*WSConn]bool)
	}
	h.commanders[commander][c] = true
}

// Unsubscribe removes a connection from a commander's events.
func (h *Hub) Unsubscribe(c *WSConn, commander string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.commanders[commander]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.commanders, commander)
		}
	}
}

// Broadcast sends an event to connections subscribed to the commander or to
// everything. Slow connections drop messages rather than block the caller.
func (h *Hub) Broadcast(event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := make(map[*WSConn]bool)
	for _, key := range []string{event.Commander, AllCommanders} {
		for c := range h.commanders[key] {
			if sent[c] {
				continue
			}
			sent[c] = true
			select {
			case c.send <- data:
			default:
				log.Warn().Str("subject", c.subject).Str("type", event.Type).Msg("Dropping WebSocket message, buffer full")
			}
		}
	}
}

// Publish implements loop.EventSink.
func (h *Hub) Publish(e loop.Event) {
	h.Broadcast(WSEvent{
		Type:      string(e.Type),
		Commander: e.Commander,
		Data:      e,
	})
}

// ConnectionCount returns the total number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// SubscriberCount returns the number of connections subscribed to a commander.
func (h *Hub) SubscriberCount(commander string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.commanders[commander])
}
