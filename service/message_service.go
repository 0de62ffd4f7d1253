package service

import (
	"gorm.io/gorm"

	"github.com/abeme/go_chat_api/entity"
)

// MessageService abstracts the append-only message store.
type MessageService interface {
	// Create persists a new message with a store-assigned timestamp and id.
	Create(senderID, receiverID, content string) (*entity.Message, error)
	// Conversation returns every message between the two users, in either
	// direction, ascending by timestamp (id as tie-break).
	Conversation(userA, userB string) ([]entity.Message, error)
}

type DBMessageService struct {
	db *gorm.DB
}

func NewMessageService(db *gorm.DB) *DBMessageService {
	return &DBMessageService{db: db}
}

func (s *DBMessageService) Create(senderID, receiverID, content string) (*entity.Message, error) {
	m := &entity.Message{SenderID: senderID, ReceiverID: receiverID, Content: content}
	if err := s.db.Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

func (s *DBMessageService) Conversation(userA, userB string) ([]entity.Message, error) {
	msgs := make([]entity.Message, 0)
	err := s.db.Model(&entity.Message{}).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}
