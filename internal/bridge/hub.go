// Package bridge exposes the grabber over a local HTTP API and a WebSocket
// event stream so external front ends (browser helpers, scripts) can drive
// extraction and downloads.
package bridge

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"postgrab/pkg/logger"
	"postgrab/pkg/messaging"
)

// Hub fans bus events out to connected WebSocket clients. Clients only
// listen; requests go through the HTTP API.
type Hub struct {
	mu        sync.Mutex
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	upgrader  websocket.Upgrader
	logger    logger.Logger
}

// NewHub creates a hub. Origins are restricted to loopback; the bridge is a
// local-only surface.
func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 64),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return strings.Contains(origin, "://localhost") ||
					strings.Contains(origin, "://127.0.0.1")
			},
		},
		logger: log,
	}
}

const writeTimeout = 10 * time.Second

// Run pumps the broadcast channel to every client until the channel closes.
// Writes happen outside the registry lock so a stalled client cannot block
// registration, and each write carries a deadline so it cannot stall the
// pump indefinitely.
func (h *Hub) Run() {
	for msg := range h.broadcast {
		h.mu.Lock()
		conns := make([]*websocket.Conn, 0, len(h.clients))
		for client := range h.clients {
			conns = append(conns, client)
		}
		h.mu.Unlock()

		for _, client := range conns {
			client.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
				client.Close()
				h.mu.Lock()
				delete(h.clients, client)
				h.mu.Unlock()
			}
		}
	}
}

// BroadcastEvent queues a bus event for delivery; slow consumers drop
// events rather than block the publisher.
func (h *Hub) BroadcastEvent(ev messaging.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.WithError(err).Error("failed to marshal event")
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("event broadcast buffer full, dropping event")
	}
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and keeps the connection registered until
// the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("websocket upgrade failed")
		return
	}

	h.logger.WithField("remote_addr", r.RemoteAddr).Info("websocket client connected")
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
		h.logger.Info("websocket client disconnected")
	}()

	const readTimeout = 60 * time.Second
	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.WithError(err).Warn("websocket read error")
			}
			return
		}
	}
}
