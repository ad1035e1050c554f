package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/expansionAgency/whatshub/internal/domain"
	"github.com/expansionAgency/whatshub/internal/logging"
)

const (
	wsWriteWait  = 10 * time.Second
	wsSendBuffer = 16
)

// wsEvent is the frame pushed to dashboard clients.
type wsEvent struct {
	Type          string                 `json:"type"`
	FeedStatus    string                 `json:"feed_status,omitempty"`
	Conversations []*domain.Conversation `json:"conversas,omitempty"`
}

// wsCommand is the only frame clients send: acknowledging an unread
// message.
type wsCommand struct {
	Type      string `json:"type"`
	MessageID string `json:"id_mensagem"`
}

// wsHub tracks connected dashboard browsers and broadcasts conversation
// updates to all of them.
type wsHub struct {
	log      *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func newWSHub(log *logging.Logger, allowedOrigins []string) *wsHub {
	return &wsHub{
		log:     log.Sub("ws"),
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(allowedOrigins),
		},
	}
}

// checkWebSocketOrigin validates WebSocket Origin headers. Requests with
// no Origin (same-origin or non-browser clients) are always allowed.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// serve upgrades the connection and runs it until the client goes away.
// acknowledge is invoked for every ack command received.
func (h *wsHub) serve(w http.ResponseWriter, r *http.Request, acknowledge func(messageID string)) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(64 * 1024)

	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	h.add(c)
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("dashboard client connected")

	go h.writeLoop(c)
	h.readLoop(c, acknowledge)

	h.remove(c)
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("dashboard client disconnected")
}

func (h *wsHub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *wsHub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

func (h *wsHub) readLoop(c *wsClient, acknowledge func(messageID string)) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd wsCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.log.Warn().Err(err).Msg("ignoring malformed ws command")
			continue
		}
		if cmd.Type == "ack" && cmd.MessageID != "" {
			acknowledge(cmd.MessageID)
		}
	}
}

func (h *wsHub) writeLoop(c *wsClient) {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// broadcastConversations pushes the current conversation view to every
// connected client. Slow clients are dropped rather than blocking the
// coordinator.
func (h *wsHub) broadcastConversations(convs []*domain.Conversation, feedStatus string) {
	data, err := json.Marshal(wsEvent{
		Type:          "conversas",
		FeedStatus:    feedStatus,
		Conversations: convs,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("encoding ws event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn().Msg("dropping slow websocket client")
			delete(h.clients, c)
			go c.close()
		}
	}
}

func (h *wsHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
