package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var errClientBufferFull = errors.New("client send buffer is full")

// client is one authenticated socket. Writes go through send so that only
// writePump touches the connection's writer.
type client struct {
	userID int64
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
}

func (c *client) enqueue(msg []byte) error {
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return errClientBufferFull
	}
}

// handleWS authenticates via the token query parameter. A bad token is
// accepted and then closed with 1008 so the client sees a close code.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	userID, err := s.verify(r.URL.Query().Get("token"))
	if err != nil {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		conn.Close()
		return
	}

	c := &client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	s.register(c)

	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.clients[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		s.clients[c.userID] = set
	}
	set[c] = struct{}{}
	s.accepted++
	s.log.Debug("client connected", zap.Int64("user_id", c.userID))
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.clients[c.userID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(s.clients, c.userID)
	}
	close(c.done)
}

// readPump answers subscribe requests and ignores everything else.
func (s *Server) readPump(c *client) {
	defer func() {
		s.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var msg struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &msg) != nil || msg.Type != "subscribe_notifications" {
			continue
		}
		ack, _ := json.Marshal(map[string]string{
			"type":   "notification_subscription",
			"status": "subscribed",
		})
		if err := c.enqueue(ack); err != nil {
			s.log.Warn("dropping subscription ack", zap.Error(err))
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// sendToUser delivers a frame to every socket the user has open and
// returns how many accepted it.
func (s *Server) sendToUser(userID int64, frame any) int {
	data, err := json.Marshal(frame)
	if err != nil {
		s.log.Error("encoding frame", zap.Error(err))
		return 0
	}

	s.mu.Lock()
	targets := make([]*client, 0, len(s.clients[userID]))
	for c := range s.clients[userID] {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	sent := 0
	for _, c := range targets {
		if err := c.enqueue(data); err != nil {
			s.log.Warn("dropping frame", zap.Int64("user_id", userID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

// Drop closes every socket of userID with the given close code. Code 1006
// cannot be sent on the wire, so it drops the TCP connection without a
// close frame.
func (s *Server) Drop(userID int64, code int) int {
	s.mu.Lock()
	targets := make([]*client, 0, len(s.clients[userID]))
	for c := range s.clients[userID] {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		if code != websocket.CloseAbnormalClosure {
			msg := websocket.FormatCloseMessage(code, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		}
		c.conn.Close()
	}
	return len(targets)
}

// ConnectionCount reports open sockets for userID.
func (s *Server) ConnectionCount(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients[userID])
}

// Accepted reports how many sockets have authenticated since start.
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}
