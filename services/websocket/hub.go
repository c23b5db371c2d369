package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	fiberws "github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// Message is the envelope pushed to consoles.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub fans out messages to connected consoles.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	sent       uint64
}

// Client is one websocket connection owned by a user.
type Client struct {
	hub    *Hub
	send   chan []byte
	userID uint
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves register, unregister and broadcast until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			logrus.WithField("user_id", c.userID).Info("WebSocket client connected")

		case c := <-h.unregister:
			h.remove(c)
			logrus.WithField("user_id", c.userID).Info("WebSocket client disconnected")

		case msg := <-h.broadcast:
			h.deliver(msg, func(*Client) bool { return true })
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// deliver drops clients whose buffers are full.
func (h *Hub) deliver(msg []byte, match func(*Client) bool) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for c := range h.clients {
		if !match(c) {
			continue
		}
		select {
		case c.send <- msg:
			n++
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
	h.sent += uint64(n)
	return n
}

// Broadcast queues message for every client.
func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		logrus.WithError(err).Error("Error marshaling WebSocket message")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logrus.Warn("Broadcast channel is full, message dropped")
	}
}

// BroadcastToUser sends message to every connection of userID.
func (h *Hub) BroadcastToUser(userID uint, message interface{}) int {
	data, err := json.Marshal(message)
	if err != nil {
		logrus.WithError(err).Error("Error marshaling WebSocket message")
		return 0
	}
	return h.deliver(data, func(c *Client) bool { return c.userID == userID })
}

// Stats reports connection counts.
type Stats struct {
	ConnectedClients int    `json:"connected_clients"`
	ConnectedUsers   int    `json:"connected_users"`
	MessagesSent     uint64 `json:"messages_sent"`
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := make(map[uint]struct{})
	for c := range h.clients {
		users[c.userID] = struct{}{}
	}
	return Stats{ConnectedClients: len(h.clients), ConnectedUsers: len(users), MessagesSent: h.sent}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeFiberWS pumps messages for an upgraded Fiber connection and returns
// when the peer disconnects.
func (h *Hub) ServeFiberWS(conn *fiberws.Conn, userID uint) {
	c := &Client{hub: h, send: make(chan []byte, sendBuffer), userID: userID}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	done := make(chan struct{})
	go h.writePump(c, conn, done)
	h.readPump(c, conn)
	close(done)
}

func (h *Hub) writePump(c *Client, conn *fiberws.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(fiberws.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(fiberws.TextMessage, msg); err != nil {
				logrus.WithError(err).WithField("user_id", c.userID).Warn("WebSocket write error")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(fiberws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(c *Client, conn *fiberws.Conn) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if fiberws.IsUnexpectedCloseError(err, fiberws.CloseGoingAway, fiberws.CloseAbnormalClosure) {
				logrus.WithError(err).WithField("user_id", c.userID).Warn("WebSocket unexpected close")
			}
			return
		}
	}
}
