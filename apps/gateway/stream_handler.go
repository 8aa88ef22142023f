package main

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mahaj/streamfeed/pkg/auth"
	"github.com/mahaj/streamfeed/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// The stream is push-only; clients send nothing but control frames.
	maxInboundSize = 512

	// Outbound buffer per subscription. When it fills, the hub drops
	// the connection instead of blocking dispatch.
	sendBuffer = 256
)

var connectionSeq atomic.Int64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// Subscriber is one live stream connection. Session state begins and
// ends with the connection; reconnecting clients resnapshot instead of
// resuming.
type Subscriber struct {
	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound event payloads.
	send chan []byte

	ConnectionID   int64
	ConversationID string
	UserID         string

	lastDelivered int64
}

// readPump discards anything the client sends (writes go through the
// REST API) and exists to notice disconnects and answer pings.
func (s *Subscriber) readPump() {
	defer func() {
		s.hub.unregister <- s
		s.conn.Close()
	}()
	s.conn.SetReadLimit(maxInboundSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error { s.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("stream read error", "connection", s.ConnectionID, "error", err)
			}
			return
		}
	}
}

// writePump pushes hub payloads and keepalive pings to the peer.
func (s *Subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub dropped this subscription.
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// serveStream handles GET /messages/stream?conversationId&token.
func serveStream(hub *Hub, w http.ResponseWriter, r *http.Request) {
	tokenString := auth.TokenFromRequest(r)
	if tokenString == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(tokenString)
	if err != nil {
		logger.Debug("stream auth failed", "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversationID := r.URL.Query().Get("conversationId")
	if conversationID == "" {
		conversationID = "general"
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := &Subscriber{
		hub:            hub,
		conn:           conn,
		send:           make(chan []byte, sendBuffer),
		ConnectionID:   connectionSeq.Add(1),
		ConversationID: conversationID,
		UserID:         claims.UserID,
	}
	hub.register <- sub

	go sub.writePump()
	go sub.readPump()
}
