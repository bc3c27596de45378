package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Hub fans detection messages out to websocket clients. Run owns the client
// set; everything else talks to it over channels.
type Hub struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	count      chan chan int
	done       chan struct{}
	log        logrus.FieldLogger
}

// NewHub returns a hub. Call Run before registering clients.
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, 16),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		log:        log.WithField("component", "hub"),
	}
}

// Run serves the hub until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				c.Close()
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.log.WithField("clients", len(h.clients)).Info("client connected")

		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				c.Close()
				h.log.WithField("clients", len(h.clients)).Info("client disconnected")
			}

		case msg := <-h.broadcast:
			h.send(websocket.TextMessage, msg)

		case <-ping.C:
			h.send(websocket.PingMessage, nil)

		case reply := <-h.count:
			reply <- len(h.clients)
		}
	}
}

func (h *Hub) send(kind int, msg []byte) {
	for c := range h.clients {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(kind, msg); err != nil {
			h.log.WithError(err).Debug("dropping client")
			delete(h.clients, c)
			c.Close()
		}
	}
}

// Register adds a client. It returns false once the hub has stopped.
func (h *Hub) Register(c *websocket.Conn) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes and closes a client.
func (h *Hub) Unregister(c *websocket.Conn) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast encodes v as JSON and queues it for every client. Messages are
// dropped when the queue is full so the caller never blocks on slow clients.
func (h *Hub) Broadcast(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		h.log.WithError(err).Warn("encode broadcast")
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Debug("broadcast queue full, dropping message")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}
