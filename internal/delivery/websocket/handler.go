package websocket

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	maxReadBytes = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS policy is applied by the HTTP middleware
	},
}

type Handler struct {
	hub *Hub
	log zerolog.Logger
}

func NewHandler(hub *Hub, log zerolog.Logger) *Handler {
	return &Handler{
		hub: hub,
		log: log.With().Str("component", "ws").Logger(),
	}
}

// Handle upgrades GET /ws?userId=... and streams that user's notifications.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "userId query parameter is required"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("upgrade failed")
		return
	}

	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.hub.register(c)
	h.log.Info().Str("user_id", userID).Int("connections", h.hub.Count()).Msg("client connected")

	hello, _ := json.Marshal(Event{Event: "connected", UserID: userID, Timestamp: time.Now().UTC().Format(time.RFC3339)})
	c.send <- hello

	go h.writeLoop(c)
	h.readLoop(c)

	h.hub.unregister(c)
	h.log.Info().Str("user_id", userID).Int("connections", h.hub.Count()).Msg("client disconnected")
}

// readLoop discards client messages and returns when the connection ends.
func (h *Handler) readLoop(c *client) {
	c.conn.SetReadLimit(maxReadBytes)
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

// writeLoop is the only writer on the connection.
func (h *Handler) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
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
				h.log.Debug().Err(err).Str("user_id", c.userID).Msg("write error")
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
