package apihttp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"torrentsession/internal/domain"
	"torrentsession/internal/metrics"
)

const (
	wsQueueDepth   = 256
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingEvery    = 30 * time.Second
)

type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func encodeWSMessage(msgType string, data interface{}) ([]byte, error) {
	return json.Marshal(wsMessage{Type: msgType, Data: data})
}

// wsClient is one subscriber. out is never closed; quit is closed exactly
// once when the client is detached from the hub.
type wsClient struct {
	conn *websocket.Conn
	out  chan []byte
	quit chan struct{}
	once sync.Once
}

func newWSClient(conn *websocket.Conn, depth int) *wsClient {
	return &wsClient{conn: conn, out: make(chan []byte, depth), quit: make(chan struct{})}
}

func (c *wsClient) detach() {
	c.once.Do(func() { close(c.quit) })
}

// wsHub fans session events out to websocket subscribers. As an event sink it
// is fed by the dispatcher in emission order, and every subscriber sees that
// same order. A subscriber whose queue is full is disconnected instead of
// stalling the dispatcher.
type wsHub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
	logger  *slog.Logger
}

func newWSHub(logger *slog.Logger) *wsHub {
	return &wsHub{clients: make(map[*wsClient]struct{}), logger: logger}
}

func (h *wsHub) Name() string { return "websocket" }

func (h *wsHub) Handle(_ context.Context, ev domain.Event) error {
	payload, err := encodeWSMessage("event", ev)
	if err != nil {
		return fmt.Errorf("ws: encode %s event: %w", ev.Kind, err)
	}
	if dropped := h.publish(payload); dropped > 0 {
		h.logger.Warn("ws subscribers too slow, disconnected",
			slog.Int("dropped", dropped),
			slog.String("torrentId", string(ev.ID)),
		)
	}
	return nil
}

// publish queues payload for every subscriber and reports how many were
// dropped for being full.
func (h *wsHub) publish(payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	dropped := 0
	for c := range h.clients {
		select {
		case c.out <- payload:
		default:
			delete(h.clients, c)
			c.detach()
			dropped++
		}
	}
	if dropped > 0 {
		metrics.WSClients.Set(float64(len(h.clients)))
	}
	return dropped
}

// join adds c unless the hub is closed.
func (h *wsHub) join(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.WSClients.Set(float64(len(h.clients)))
	h.logger.Debug("ws client connected", slog.Int("total", len(h.clients)))
	return true
}

func (h *wsHub) leave(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		metrics.WSClients.Set(float64(len(h.clients)))
		h.logger.Debug("ws client disconnected", slog.Int("total", len(h.clients)))
	}
	h.mu.Unlock()
	c.detach()
}

func (h *wsHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close detaches every subscriber and refuses new ones. It is safe to call
// more than once.
func (h *wsHub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	detached := h.clients
	h.clients = make(map[*wsClient]struct{})
	metrics.WSClients.Set(0)
	h.mu.Unlock()

	for c := range detached {
		c.detach()
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// writeLoop owns the connection: it is the only writer and closes the
// connection once the client is detached.
func (c *wsClient) writeLoop() {
	ping := time.NewTicker(wsPingEvery)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.quit:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"),
				time.Now().Add(wsWriteTimeout))
			return
		case msg := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.detach()
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				c.detach()
				return
			}
		}
	}
}

// readLoop discards client frames and keeps the pong deadline fresh. A read
// error means the peer is gone.
func (c *wsClient) readLoop(h *wsHub) {
	defer h.leave(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
