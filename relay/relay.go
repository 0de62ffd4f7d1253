// Package relay mediates message acceptance: it validates a send request,
// persists it, and routes push delivery to live connections.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abeme/go_chat_api/entity"
	"github.com/abeme/go_chat_api/service"
)

var (
	// ErrValidation means a required field was missing; nothing was persisted.
	ErrValidation = errors.New("missing receiverId or content")
	// ErrPersistence wraps a store read/write failure.
	ErrPersistence = errors.New("persistence failed")
)

// Event names match the wire protocol of the live channel.
const (
	EventReceiveMessage = "receiveMessage"
	EventMessageSent    = "messageSent"
)

// Event is the push payload delivered over a live connection.
type Event struct {
	Type       string    `json:"type"`
	ID         uint      `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// Registry resolves an identity to its live connection. SendToUser reports
// whether a connection existed; an absent connection is not an error.
type Registry interface {
	SendToUser(userID string, payload []byte) bool
}

// Relay owns the send and history paths. It is shared by the REST and the
// live channel; only the live channel triggers push delivery.
type Relay struct {
	messages service.MessageService
	registry Registry
	log      *zap.Logger
}

func New(messages service.MessageService, registry Registry, log *zap.Logger) *Relay {
	return &Relay{messages: messages, registry: registry, log: log}
}

// Send validates and persists a message. No push is attempted; callers on
// the REST channel treat the returned record as the only acknowledgement.
func (r *Relay) Send(senderID, receiverID, content string) (*entity.Message, error) {
	if receiverID == "" || content == "" {
		return nil, ErrValidation
	}
	m, err := r.messages.Create(senderID, receiverID, content)
	if err != nil {
		r.log.Error("message write failed",
			zap.String("sender", senderID), zap.String("receiver", receiverID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return m, nil
}

// SendLive persists like Send and then pushes delivery events: one
// receiveMessage to the receiver's live connection (if any) and one
// messageSent back to the sender's. Events are emitted only after the
// store has acknowledged the write.
func (r *Relay) SendLive(senderID, receiverID, content string) (*entity.Message, error) {
	m, err := r.Send(senderID, receiverID, content)
	if err != nil {
		return nil, err
	}
	if delivered := r.push(EventReceiveMessage, m, m.ReceiverID); !delivered {
		r.log.Debug("receiver offline", zap.String("receiver", m.ReceiverID))
	}
	r.push(EventMessageSent, m, m.SenderID)
	return m, nil
}

// History returns the conversation between two users, direction-symmetric
// and ascending by timestamp.
func (r *Relay) History(userA, userB string) ([]entity.Message, error) {
	msgs, err := r.messages.Conversation(userA, userB)
	if err != nil {
		r.log.Error("history read failed",
			zap.String("userA", userA), zap.String("userB", userB), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return msgs, nil
}

func (r *Relay) push(eventType string, m *entity.Message, target string) bool {
	evt := Event{
		Type:       eventType,
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		Timestamp:  m.CreatedAt,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		r.log.Error("event marshal failed", zap.String("type", eventType), zap.Error(err))
		return false
	}
	return r.registry.SendToUser(target, payload)
}
