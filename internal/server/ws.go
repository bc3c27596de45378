package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// WSHandler upgrades /api/ws requests and attaches them to a Hub. Clients
// only receive; anything they send is discarded.
type WSHandler struct {
	hub *Hub
	log logrus.FieldLogger
}

// NewWSHandler returns a websocket handler for hub.
func NewWSHandler(hub *Hub, log logrus.FieldLogger) *WSHandler {
	return &WSHandler{hub: hub, log: log.WithField("component", "ws")}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	if !h.hub.Register(conn) {
		conn.Close()
		return
	}
	defer h.hub.Unregister(conn)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
