package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/abeme/go_chat_api/utils"
)

// IdentityKey is the gin context key holding the verified *utils.Claims.
const IdentityKey = "identity"

// AuthMiddleware rejects requests without a valid bearer token. A missing
// or malformed header yields 401 with a JSON body; a token that fails
// verification yields a bare 403.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No token provided"})
			return
		}
		raw := strings.TrimSpace(auth[len("bearer "):])
		claims, err := utils.ValidateToken(secret, raw)
		if err != nil {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Set(IdentityKey, claims)
		c.Next()
	}
}

// Identity returns the claims stored by AuthMiddleware, or nil if the
// request was not authenticated.
func Identity(c *gin.Context) *utils.Claims {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*utils.Claims)
	return claims
}
