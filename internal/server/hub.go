package server

import (
	"encoding/json"
	"sync"

	"github.com/jobpilot/automation/internal/eventbus"
	"github.com/jobpilot/automation/internal/notifications"
	"github.com/jobpilot/automation/internal/types"
	"github.com/gorilla/websocket"
)

// WebSocket buffer and channel size constants
const (
	// WebSocketBufferSize is the buffer size for WebSocket send/broadcast channels
	// Allows pending messages to queue up before blocking, useful for burst traffic
	WebSocketBufferSize = 256
)

// Client represents a WebSocket client (browser)
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub manages WebSocket clients
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, WebSocketBufferSize),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds a client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastJSON sends a JSON message to all clients
func (h *Hub) BroadcastJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.broadcast <- data
}

// BroadcastState sends a session state snapshot to all clients.
func (h *Hub) BroadcastState(state types.SessionState) {
	h.BroadcastJSON(types.WSMessage{
		Type: types.WSTypeStateUpdate,
		Data: state,
	})
}

// BroadcastAlert sends a notification banner update to all clients.
func (h *Hub) BroadcastAlert(banner notifications.BannerState) {
	h.BroadcastJSON(types.WSMessage{
		Type: types.WSTypeAlert,
		Data: banner,
	})
}

// BroadcastTask relays a task lifecycle transition to all clients.
func (h *Hub) BroadcastTask(msg eventbus.TaskMessage) {
	h.BroadcastJSON(types.WSMessage{
		Type: types.WSTypeTask,
		Data: msg,
	})
}

// BroadcastActivity relays one activity log row to all clients.
func (h *Hub) BroadcastActivity(record types.ActivityRecord) {
	h.BroadcastJSON(types.WSMessage{
		Type: types.WSTypeActivity,
		Data: record,
	})
}

// ClientCount returns number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump reads messages from the WebSocket
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		// We don't process incoming messages from browser currently
	}
}

// writePump writes messages to the WebSocket
func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.WriteMessage(websocket.TextMessage, message)
		}
	}
}
