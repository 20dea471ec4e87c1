package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/wricardo/mcp-training/chopsticks/game/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// EventStateUpdate is sent after every join or move
	EventStateUpdate = "state_update"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message represents a WebSocket message
type Message struct {
	Event     string             `json:"event"`
	SessionID string             `json:"session_id"`
	GameState *service.GameState `json:"game_state,omitempty"`
}

// Client is one player's connection to a session
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
	player    string
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by session ID, owned by the Run goroutine
	sessions map[string]map[*Client]bool

	// Client counts readable outside Run
	counts   map[string]int
	countsMu sync.RWMutex

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	logger zerolog.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		counts:     make(map[string]int),
		broadcast:  make(chan *Message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "websocket_hub").Logger(),
	}
}

// Run starts the hub's event loop and returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.sessions {
				for client := range clients {
					h.unregisterClient(client)
				}
			}
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// ServeWS upgrades the request and subscribes player to sessionID. The
// caller must have checked that player is seated. initial, if set, is sent
// before any broadcast.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID, player string, initial *service.GameState) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: sessionID,
		player:    player,
	}
	if initial != nil {
		if data, err := encode(&Message{Event: EventStateUpdate, SessionID: sessionID, GameState: initial}); err == nil {
			client.send <- data
		}
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Publish implements service.Notifier
func (h *Hub) Publish(state *service.GameState) {
	if state == nil {
		return
	}
	h.BroadcastToSession(state.SessionID, state)
}

// BroadcastToSession queues a state update for the seated clients of a session
func (h *Hub) BroadcastToSession(sessionID string, state *service.GameState) {
	message := &Message{
		Event:     EventStateUpdate,
		SessionID: sessionID,
		GameState: state,
	}

	select {
	case h.broadcast <- message:
	case <-h.done:
	default:
		h.logger.Warn().Str("session_id", sessionID).Msg("broadcast queue full, dropping update")
	}
}

// ClientCount returns the number of connections subscribed to a session
func (h *Hub) ClientCount(sessionID string) int {
	h.countsMu.RLock()
	defer h.countsMu.RUnlock()
	return h.counts[sessionID]
}

func (h *Hub) setCount(sessionID string, n int) {
	h.countsMu.Lock()
	defer h.countsMu.Unlock()
	if n == 0 {
		delete(h.counts, sessionID)
		return
	}
	h.counts[sessionID] = n
}

// registerClient adds a client to a session
func (h *Hub) registerClient(client *Client) {
	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true
	h.setCount(client.sessionID, len(h.sessions[client.sessionID]))

	h.logger.Debug().
		Str("session_id", client.sessionID).
		Str("player", client.player).
		Int("clients", len(h.sessions[client.sessionID])).
		Msg("client registered")
}

// unregisterClient removes a client from a session
func (h *Hub) unregisterClient(client *Client) {
	clients, ok := h.sessions[client.sessionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}

	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.sessions, client.sessionID)
	}
	h.setCount(client.sessionID, len(clients))

	h.logger.Debug().
		Str("session_id", client.sessionID).
		Str("player", client.player).
		Int("clients", len(clients)).
		Msg("client unregistered")
}

// broadcastMessage sends a message to the seated clients of its session
func (h *Hub) broadcastMessage(message *Message) {
	data, err := encode(message)
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", message.SessionID).Msg("failed to marshal broadcast message")
		return
	}

	for client := range h.sessions[message.SessionID] {
		if message.GameState != nil && !message.GameState.IsSeated(client.player) {
			continue
		}
		select {
		case client.send <- data:
		default:
			h.unregisterClient(client)
		}
	}
}

func encode(message *Message) ([]byte, error) {
	return json.Marshal(message)
}

// readPump keeps the connection alive; clients send nothing meaningful
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug().Err(err).Str("session_id", c.sessionID).Msg("websocket closed")
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
