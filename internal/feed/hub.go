package feed

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"predmarket/internal/infra"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is public read-only data.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn     *websocket.Conn
	send     chan []byte
	marketID string
}

// Hub fans market events out to websocket subscribers. It implements
// domain.EventPublisher. Slow subscribers are dropped rather than allowed
// to back-pressure the engine.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{} // marketID -> subscribers
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*client]struct{})}
}

// Publish sends an event to every subscriber of the market. It never
// blocks; a subscriber whose buffer is full misses the event.
func (h *Hub) Publish(marketID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshalling feed event", slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[marketID] {
		select {
		case c.send <- payload:
		default:
			slog.Debug("dropping event for slow subscriber",
				slog.String("market_id", marketID))
		}
	}
}

// Subscribers returns the subscriber count for a market.
func (h *Hub) Subscribers(marketID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[marketID])
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.clients[c.marketID]
	if !ok {
		subs = make(map[*client]struct{})
		h.clients[c.marketID] = subs
	}
	subs[c] = struct{}{}
	infra.GlobalMetrics.IncrementSubscribers()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.clients[c.marketID]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.clients, c.marketID)
		}
		infra.GlobalMetrics.DecrementSubscribers()
	}
}

// ServeWS upgrades an HTTP request to a feed subscription. The market is
// selected with the market_id query parameter.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	marketID := r.URL.Query().Get("market_id")
	if marketID == "" {
		http.Error(w, "market_id query parameter is required", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize), marketID: marketID}
	h.add(c)
	slog.Info("feed subscriber connected",
		slog.String("market_id", marketID), slog.String("remote", r.RemoteAddr))

	go h.writePump(c)
	go h.readPump(c)
}

// writePump drains the client's send buffer and keeps the connection alive
// with pings.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes (and discards) inbound frames so pong handling and
// close detection work.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		close(c.send)
		slog.Info("feed subscriber disconnected", slog.String("market_id", c.marketID))
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
