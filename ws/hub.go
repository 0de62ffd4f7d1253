// Package ws implements the live channel: the connection registry (Hub)
// and the per-connection read/write pumps.
package ws

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Hub is the connection registry: it maps an identity to its single live
// connection. All map mutation happens on the run loop goroutine, driven
// by the register/unregister/deliver channels, so no locking is needed.
type Hub struct {
	clients    map[string]*Client // userID -> active connection, last-connected wins
	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	lookups    chan lookup

	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type delivery struct {
	userID  string
	payload []byte
	sent    chan bool
}

type lookup struct {
	userID string
	reply  chan bool
}

func NewHub(log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery),
		lookups:    make(chan lookup),
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return
		case c := <-h.register:
			if old, ok := h.clients[c.userID]; ok {
				// Second connection for the same identity replaces the first.
				h.drop(old)
				h.log.Info("replacing live connection", zap.String("user", c.userID))
			}
			h.clients[c.userID] = c
			h.log.Info("client registered", zap.String("user", c.userID))
		case c := <-h.unregister:
			if cur, ok := h.clients[c.userID]; ok && cur == c {
				delete(h.clients, c.userID)
				h.drop(c)
				h.log.Info("client unregistered", zap.String("user", c.userID))
			}
		case d := <-h.deliver:
			d.sent <- h.sendLocked(d.userID, d.payload)
		case q := <-h.lookups:
			_, ok := h.clients[q.userID]
			q.reply <- ok
		}
	}
}

// sendLocked runs on the loop goroutine. A client whose buffer is full is
// treated as dead and dropped.
func (h *Hub) sendLocked(userID string, payload []byte) bool {
	c, ok := h.clients[userID]
	if !ok {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		delete(h.clients, userID)
		h.drop(c)
		h.log.Warn("client send buffer full, dropping", zap.String("user", userID))
		return false
	}
}

// drop runs on the loop goroutine. It never closes c.send: the old
// connection's readPump may still be mid-frame and enqueueing an error
// event, so the pumps are told to stop through the done channel instead.
func (h *Hub) drop(c *Client) {
	if c.dropped {
		return
	}
	c.dropped = true
	close(c.done)
	_ = c.conn.Close()
}

func (h *Hub) closeAll() {
	for userID, c := range h.clients {
		delete(h.clients, userID)
		h.drop(c)
	}
}

// RegisterClient binds a client's identity to its connection.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.ctx.Done():
	}
}

// UnregisterClient removes the binding if it still points at this client.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// Connected reports whether the identity currently has a live connection.
func (h *Hub) Connected(userID string) bool {
	q := lookup{userID: userID, reply: make(chan bool, 1)}
	select {
	case h.lookups <- q:
		return <-q.reply
	case <-h.ctx.Done():
		return false
	}
}

// SendToUser enqueues a payload for the user's live connection and reports
// whether one existed. Implements relay.Registry.
func (h *Hub) SendToUser(userID string, payload []byte) bool {
	d := delivery{userID: userID, payload: payload, sent: make(chan bool, 1)}
	select {
	case h.deliver <- d:
		return <-d.sent
	case <-h.ctx.Done():
		return false
	}
}

// Shutdown closes every live connection and stops the run loop. It returns
// context.DeadlineExceeded if the loop does not drain in time.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()
	select {
	case <-h.done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}
