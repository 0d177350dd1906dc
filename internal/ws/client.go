package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the maximum time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// pongWait is the maximum time to wait for a pong reply from the peer.
	pongWait = 60 * time.Second
	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize is the maximum inbound message size in bytes.
	maxMessageSize = 4096
)

// controlMessage is the JSON envelope sent by the client to join or leave a
// room (a conversation id).
type controlMessage struct {
	Action string `json:"action"` // "join" | "leave"
	Room   string `json:"room"`
}

// Client represents a single live push connection. Each client is implicitly
// a member of its own username room in addition to any joined conversation
// rooms.
type Client struct {
	ID       string
	Username string
	conn     *websocket.Conn
	rooms    map[string]bool
	roomsMu  sync.RWMutex
	send     chan []byte
	hub      *Hub
}

// NewClient creates a Client for the given connection and authenticated user.
func NewClient(hub *Hub, conn *websocket.Conn, username string) *Client {
	return &Client{
		ID:       uuid.New().String(),
		Username: username,
		conn:     conn,
		rooms:    make(map[string]bool),
		send:     make(chan []byte, 256),
		hub:      hub,
	}
}

// InRoom reports whether this client should receive broadcasts for room.
func (c *Client) InRoom(room string) bool {
	if room != "" && room == c.Username {
		return true
	}
	c.roomsMu.RLock()
	defer c.roomsMu.RUnlock()
	return c.rooms[room]
}

// ReadPump pumps control messages from the connection to the client's room
// set. It runs in its own goroutine per client and unregisters the client on
// disconnect.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: client %s read error: %v", c.ID, err)
			}
			break
		}

		var cm controlMessage
		if err := json.Unmarshal(msg, &cm); err != nil {
			log.Printf("ws: client %s sent invalid control message: %v", c.ID, err)
			continue
		}

		switch cm.Action {
		case "join":
			c.roomsMu.Lock()
			c.rooms[cm.Room] = true
			c.roomsMu.Unlock()
			log.Printf("ws: client %s joined room %s", c.ID, cm.Room)
		case "leave":
			c.roomsMu.Lock()
			delete(c.rooms, cm.Room)
			c.roomsMu.Unlock()
			log.Printf("ws: client %s left room %s", c.ID, cm.Room)
		default:
			log.Printf("ws: client %s unknown action %q", c.ID, cm.Action)
		}
	}
}

// WritePump pumps messages from the hub's send channel to the connection.
// It runs in its own goroutine per client.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
