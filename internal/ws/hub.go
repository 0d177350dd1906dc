package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// PushEvent is the JSON envelope delivered to connected clients. Room is the
// addressing unit: either a conversation id or a single user's username.
type PushEvent struct {
	Event string          `json:"event"`
	Room  string          `json:"room"`
	Data  json.RawMessage `json:"data"`
}

// Hub owns the live push-connection registry and broadcasts state-change
// events to the clients subscribed to a room. It is safe for concurrent use;
// registry mutation happens only through the connect/disconnect hooks
// (Register/Unregister) and broadcast iterates a snapshot of the registry.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg
	mu         sync.RWMutex
}

type broadcastMsg struct {
	room string
	data []byte
}

// NewHub allocates and initialises a Hub. Call Run() in a goroutine to start
// the event loop.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan broadcastMsg, 256),
	}
}

// Run is the hub's main event loop. It must be executed in a dedicated
// goroutine and runs for the lifetime of the process.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.Printf("ws: client %s registered (user=%s)", client.ID, client.Username)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("ws: client %s unregistered", client.ID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				if client.InRoom(msg.room) {
					select {
					case client.send <- msg.data:
					default:
						// Slow consumer: drop the message to avoid blocking.
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast delivers payload to every live connection currently subscribed to
// room under the given event name. Delivery is best-effort: only currently
// connected clients receive it, disconnected clients reconcile via a fetch.
func (h *Hub) Broadcast(room, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ws: failed to marshal %s payload: %v", event, err)
		return
	}

	envelope, err := json.Marshal(PushEvent{Event: event, Room: room, Data: data})
	if err != nil {
		log.Printf("ws: failed to marshal %s envelope: %v", event, err)
		return
	}

	h.broadcast <- broadcastMsg{room: room, data: envelope}
}

// Register enqueues a new client for addition to the hub.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister enqueues a client for removal from the hub.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}
