package entity

import "time"

// Message is a direct message between two users. SenderID and ReceiverID
// reference User.LinkedInID. CreatedAt is assigned by the store at insert
// time and is the sort key for conversation retrieval; the autoincrement
// ID breaks equal-timestamp ties.
type Message struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	SenderID   string    `json:"senderId" gorm:"index;size:64"`
	ReceiverID string    `json:"receiverId" gorm:"index;size:64"`
	Content    string    `json:"content" gorm:"type:text"`
	CreatedAt  time.Time `json:"timestamp"`
}

// SendMessageRequest is the body of POST /messages. The sender is taken
// from the bearer token, never from the body.
type SendMessageRequest struct {
	ReceiverID string `json:"receiverId" binding:"required"`
	Content    string `json:"content" binding:"required"`
}
