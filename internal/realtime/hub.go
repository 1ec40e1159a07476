package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/findash/pkg/logger"
	"github.com/wonny/findash/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Hub fans alert events out to websocket clients
// ⭐ SSOT: 웹소켓 브로드캐스트는 이 허브에서만
// New clients immediately receive the latest event.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *logger.Logger
	metrics  *metrics.Metrics

	mu      sync.RWMutex
	clients map[*client]struct{}
	last    *Event
	lastRaw []byte
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a hub; m may be nil
func NewHub(log *logger.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  log.Component("realtime"),
		metrics: m,
		clients: make(map[*client]struct{}),
	}
}

// Publish broadcasts e to every client. Slow clients whose buffer is full are dropped.
func (h *Hub) Publish(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = &e
	h.lastRaw = data

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("Dropping slow alert stream client")
			delete(h.clients, c)
			c.close()
		}
	}
	h.metrics.ClientsConnected(len(h.clients))

	h.logger.WithFields(map[string]interface{}{
		"run_id":  e.RunID,
		"alerts":  len(e.Alerts),
		"clients": len(h.clients),
	}).Debug("Published alert event")

	return nil
}

// Last returns the most recently published event, or nil
func (h *Hub) Last() *Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the client leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.lastRaw != nil {
		c.send <- h.lastRaw
	}
	h.metrics.ClientsConnected(len(h.clients))
	h.mu.Unlock()

	h.logger.WithField("remote", r.RemoteAddr).Info("Alert stream client connected")

	go h.writePump(c)
	h.readPump(c)
}

// readPump keeps the connection alive and detects disconnects; clients send nothing
func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.metrics.ClientsConnected(len(h.clients))
	h.mu.Unlock()

	h.logger.Debug("Alert stream client disconnected")
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	h.metrics.ClientsConnected(0)
}
