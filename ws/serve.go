package ws

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/abeme/go_chat_api/relay"
	"github.com/abeme/go_chat_api/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS authenticates the upgrade request, binds the verified identity to
// the connection, registers it with the hub, and starts the pumps. The
// live channel requires the same bearer credential as the REST channel;
// browsers cannot set headers on websocket requests, so a `token` query
// parameter is accepted as well.
func ServeWS(h *Hub, r *relay.Relay, secret []byte, log *zap.Logger, c *gin.Context) {
	raw := bearerToken(c)
	if raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No token provided"})
		return
	}
	claims, err := utils.ValidateToken(secret, raw)
	if err != nil {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		userID: claims.ID,
		relay:  r,
		log:    log,
	}
	h.RegisterClient(client)
	go client.Serve()
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	return c.Query("token")
}
