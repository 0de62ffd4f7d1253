package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abeme/go_chat_api/entity"
	"github.com/abeme/go_chat_api/middleware"
	"github.com/abeme/go_chat_api/relay"
)

type MessageController struct {
	relay *relay.Relay
}

func NewMessageController(r *relay.Relay) *MessageController {
	return &MessageController{relay: r}
}

// Send persists a message from the authenticated caller. The response is
// the only acknowledgement on this channel; no push occurs.
func (m *MessageController) Send(c *gin.Context) {
	identity := middleware.Identity(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No token provided"})
		return
	}
	var req entity.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing receiverId or content"})
		return
	}
	msg, err := m.relay.Send(identity.ID, req.ReceiverID, req.Content)
	if err != nil {
		if errors.Is(err, relay.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing receiverId or content"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// History returns the conversation between the caller and :userId,
// ascending by timestamp.
func (m *MessageController) History(c *gin.Context) {
	identity := middleware.Identity(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No token provided"})
		return
	}
	msgs, err := m.relay.History(identity.ID, c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve messages"})
		return
	}
	c.JSON(http.StatusOK, msgs)
}
