package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"push-relay/internal/domain"
)

const sendBuffer = 32

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// Event is the envelope written to connected clients.
type Event struct {
	Event        string               `json:"event"`
	UserID       string               `json:"userId,omitempty"`
	Notification *domain.Notification `json:"notification,omitempty"`
	Timestamp    string               `json:"timestamp,omitempty"`
}

// Hub groups live connections per user and forwards notification records to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	count   int
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		log:     log.With().Str("component", "ws-hub").Logger(),
	}
}

func (h *Hub) Name() string { return "websocket" }

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	set := h.clients[c.userID]
	if set == nil {
		set = make(map[*client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	h.count++
	h.mu.Unlock()
}

// unregister must be called exactly once per client; it closes the send channel.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if set := h.clients[c.userID]; set != nil {
		if _, ok := set[c]; ok {
			delete(set, c)
			h.count--
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	h.mu.Unlock()
}

// Deliver queues each record for the connections of its user.
// Slow clients whose buffer is full miss the record.
func (h *Hub) Deliver(_ context.Context, records []domain.Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for i := range records {
		set := h.clients[records[i].UserID]
		if len(set) == 0 {
			continue
		}
		msg, err := json.Marshal(Event{Event: "notification", Notification: &records[i]})
		if err != nil {
			return fmt.Errorf("marshal notification %s: %w", records[i].ID, err)
		}
		for c := range set {
			select {
			case c.send <- msg:
			default:
				dropped++
			}
		}
	}
	if dropped > 0 {
		h.log.Warn().Int("dropped", dropped).Msg("websocket clients too slow, records dropped")
	}
	return nil
}

// Close disconnects every client. Read loops then unregister them.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.clients {
		for c := range set {
			_ = c.conn.Close()
		}
	}
}
