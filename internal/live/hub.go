// Package live streams handled exchanges to websocket subscribers.
package live

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/funnyzak/botfake/internal/logger"
	"github.com/funnyzak/botfake/pkg/exchange"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// ErrClosed is returned when subscribing to a closed hub.
var ErrClosed = errors.New("live hub closed")

// Event is the message sent to subscribers.
type Event struct {
	Type     string             `json:"type"`
	Exchange *exchange.Exchange `json:"exchange,omitempty"`
	Report   string             `json:"report,omitempty"`
}

// Event types
const (
	EventExchange = "exchange"
	EventStopped  = "stopped"
)

type client struct {
	conn *websocket.Conn
	// gorilla connections allow one concurrent writer
	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) write(messageType int, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, payload)
}

// Hub manages live connections for exchange broadcasts.
type Hub struct {
	logger  logger.Logger
	clients map[*client]struct{}
	closed  bool
	mu      sync.RWMutex

	upgrader   websocket.Upgrader
	pongWait   time.Duration
	pingPeriod time.Duration
}

// NewHub creates a new hub.
func NewHub(log logger.Logger) *Hub {
	return &Hub{
		logger:  log,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
	}
}

// ServeHTTP upgrades the request and subscribes the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Upgrade(w, r); err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err)
	}
}

// Upgrade upgrades the HTTP connection to WebSocket and subscribes it.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, ErrClosed.Error(), http.StatusServiceUnavailable)
		return nil, ErrClosed
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	c := &client{conn: conn, done: make(chan struct{})}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return nil, ErrClosed
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.readLoop(c)
	go h.pingLoop(c)
	return conn, nil
}

// Clients returns the number of subscribed connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) readLoop(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// pingLoop keeps idle subscribers alive; their pongs extend the read
// deadline set in readLoop.
func (h *Hub) pingLoop(c *client) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.stop()

	c.conn.Close()
}

func (h *Hub) snapshot() []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

// Publish sends one exchange to every subscriber.
func (h *Hub) Publish(ex *exchange.Exchange) error {
	return h.Broadcast(Event{Type: EventExchange, Exchange: ex})
}

// Broadcast sends event to all active connections. Write failures drop the
// failing client and are not returned.
func (h *Hub) Broadcast(event Event) error {
	clients := h.snapshot()
	if len(clients) == 0 {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	for _, c := range clients {
		if err := c.write(websocket.TextMessage, payload); err != nil {
			h.logger.Warn("Failed to write to websocket client", "error", err)
			h.unregister(c)
		}
	}
	return nil
}

// Close terminates all connections and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.stop()
		c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
}
