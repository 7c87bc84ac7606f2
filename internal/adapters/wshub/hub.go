// Package wshub pushes finalized trade and ledger events to connected
// WebSocket clients. Delivery is best effort: a slow or dead client is
// dropped, never allowed to stall settlement.
package wshub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"hydrabot/internal/domain"
	"hydrabot/internal/ports"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	clientBuffer   = 64
	broadcastQueue = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub implements ports.EventBroadcaster over WebSocket connections.
type Hub struct {
	logger ports.Logger

	mu      sync.Mutex
	clients map[*client]struct{}

	broadcast chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. Run must be started for events to flow.
func NewHub(logger ports.Logger) *Hub {
	return &Hub{
		logger:    logger,
		clients:   make(map[*client]struct{}),
		broadcast: make(chan []byte, broadcastQueue),
		done:      make(chan struct{}),
	}
}

// Run fans broadcast messages out to connected clients until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case <-h.done:
			return
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Client cannot keep up, cut it loose.
					h.dropLocked(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish implements ports.EventBroadcaster. It never blocks the caller: if
// the broadcast queue is full the event is dropped and logged.
func (h *Hub) Publish(ctx context.Context, evt domain.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error(ctx, err, "Failed to marshal event for broadcast", map[string]interface{}{"type": evt.Type})
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn(ctx, "Broadcast queue full, event dropped", map[string]interface{}{"type": evt.Type})
	}
}

// ServeHTTP upgrades incoming connections and registers them with the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "WebSocket upgrade failed", map[string]interface{}{"error": err.Error(), "remote": r.RemoteAddr})
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info(r.Context(), "WebSocket client connected", map[string]interface{}{"remote": r.RemoteAddr, "clients": n})

	go h.writePump(c)
	go h.readPump(c)
}

// writePump drains the client's send channel onto the connection.
func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.drop(c)
			return
		}
	}
}

// readPump discards inbound frames; it exists to detect disconnects.
func (h *Hub) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
}

// dropLocked requires h.mu held.
func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	c.conn.Close()
}

func (h *Hub) shutdown() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		for c := range h.clients {
			h.dropLocked(c)
		}
		h.mu.Unlock()
	})
}
