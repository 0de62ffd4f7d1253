package ws

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/abeme/go_chat_api/relay"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one authenticated live connection. userID is the identity
// verified at upgrade time; payload sender ids are cross-checked against it.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{} // closed by the hub loop when the connection is dropped
	userID string
	relay  *relay.Relay
	log    *zap.Logger

	dropped bool // mutated only by the hub loop
}

// enqueue hands a payload to the write pump. Payloads for a connection the
// hub has already dropped are discarded.
func (c *Client) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	case <-c.done:
	}
}

// envelope is the inbound event frame. SenderID is optional; when present
// it must match the connection's bound identity.
type envelope struct {
	Type       string `json:"type"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("read error", zap.String("user", c.userID), zap.Error(err))
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.enqueue([]byte(`{"type":"error","error":"invalid_json"}`))
			continue
		}
		switch env.Type {
		case "send_message":
			c.handleSend(env)
		default:
			c.enqueue([]byte(`{"type":"error","error":"unsupported_type"}`))
		}
	}
}

func (c *Client) handleSend(env envelope) {
	if env.SenderID != "" && env.SenderID != c.userID {
		c.enqueue([]byte(`{"type":"error","error":"sender_mismatch"}`))
		return
	}
	if _, err := c.relay.SendLive(c.userID, env.ReceiverID, env.Content); err != nil {
		if errors.Is(err, relay.ErrValidation) {
			c.enqueue([]byte(`{"type":"error","error":"missing_fields"}`))
			return
		}
		c.enqueue([]byte(`{"type":"error","error":"send_failed"}`))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-c.done:
			// dropped by the hub
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Serve runs the pumps; it returns when the connection is gone.
func (c *Client) Serve() {
	go c.writePump()
	c.readPump()
}
