package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mcp-food-log/internal/foodlog"
)

const (
	pingInterval = 25 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// subscriber is one websocket client. Messages queue on send and are
// written by its own goroutine.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes food log changes to websocket subscribers so display
// surfaces can re-read aggregates.
type Hub struct {
	mu      sync.Mutex
	clients map[*subscriber]struct{}
	detach  func()
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*subscriber]struct{})}
}

// Attach subscribes the hub to l. Only one log is attached at a time.
func (h *Hub) Attach(l *foodlog.Log) {
	h.mu.Lock()
	if h.detach != nil {
		h.detach()
	}
	h.mu.Unlock()

	cancel := l.Subscribe(h.Broadcast)

	h.mu.Lock()
	h.detach = cancel
	h.mu.Unlock()
}

func (h *Hub) register(c *subscriber) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// drop removes c and stops its writer. Safe to call more than once.
func (h *Hub) drop(c *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *subscriber) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues c for every client without blocking. A client whose
// queue is full is dropped.
func (h *Hub) Broadcast(c foodlog.Change) {
	msg, err := json.Marshal(c)
	if err != nil {
		log.Printf("[server] failed to marshal change: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.send <- msg:
		default:
			log.Printf("[server] dropping slow event subscriber")
			h.dropLocked(cl)
		}
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)

	go h.writePump(c)

	// Clients only listen; the read loop ends on close or error.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

// writePump owns all writes to c.conn and closes it once c.send is closed.
func (h *Hub) writePump(c *subscriber) {
	t := time.NewTicker(pingInterval)
	defer func() {
		t.Stop()
		_ = c.conn.Close()
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
				h.drop(c)
				return
			}
		case <-t.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(c)
				return
			}
		}
	}
}

// Close drops every client and detaches from the log.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.detach != nil {
		h.detach()
		h.detach = nil
	}
	for c := range h.clients {
		h.dropLocked(c)
	}
}
