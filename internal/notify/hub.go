package notify

import (
	"context"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Event is a push notification delivered over a user's websocket connections.
type Event struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

// Client is one websocket connection belonging to a user.
type Client struct {
	UserID int64
	Conn   *websocket.Conn
	Send   chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// Hub tracks the websocket connections of logged-in users and fans push
// events out to them. A user may hold several connections (tabs, devices).
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: map[int64]map[*Client]struct{}{},
	}
}

// AddClient registers a connection for a user and starts its write and
// keepalive loops.
func (h *Hub) AddClient(userID int64, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan Event, 64),
		ctx:    ctx,
		cancel: cancel,
	}

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = map[*Client]struct{}{}
	}
	h.clients[userID][c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()
	go c.keepAliveLoop()

	return c
}

// RemoveClient unregisters a connection and closes it.
func (h *Hub) RemoveClient(c *Client) {
	c.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.clients[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}

	_ = c.Conn.Close(websocket.StatusNormalClosure, "bye")
}

// Publish delivers an event to every connection the user currently holds.
// Connections with a full send buffer are skipped rather than blocked on.
func (h *Hub) Publish(userID int64, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userID] {
		select {
		case c.Send <- ev:
		default:
			// channel full, drop
		}
	}
}

// Connections reports how many live connections the user has.
func (h *Hub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// writeLoop drains the send channel onto the wire. The channel is never
// closed: Publish may still be sending on it while the client is being torn
// down, and an abandoned channel is simply garbage collected.
func (c *Client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.Send:
			writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = wsjson.Write(writeCtx, c.Conn, ev)
			cancel()
		}
	}
}

func (c *Client) keepAliveLoop() {
	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = c.Conn.Ping(pingCtx)
			cancel()
		}
	}
}
