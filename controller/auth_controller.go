package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abeme/go_chat_api/linkedin"
	"github.com/abeme/go_chat_api/service"
	"github.com/abeme/go_chat_api/utils"
)

// OAuthProvider is the external identity-provider collaborator.
type OAuthProvider interface {
	AuthURL() string
	Exchange(ctx context.Context, code string) (*linkedin.Profile, error)
}

type AuthController struct {
	provider OAuthProvider
	users    service.UserService
	secret   []byte
	log      *zap.Logger
}

func NewAuthController(provider OAuthProvider, users service.UserService, secret []byte, log *zap.Logger) *AuthController {
	return &AuthController{provider: provider, users: users, secret: secret, log: log}
}

// Redirect sends the client to the LinkedIn authorization page.
func (a *AuthController) Redirect(c *gin.Context) {
	c.Redirect(http.StatusFound, a.provider.AuthURL())
}

// Callback handles the provider redirect: exchanges the code, upserts the
// identity, and returns a session token with the identity payload.
func (a *AuthController) Callback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing code from LinkedIn callback"})
		return
	}

	profile, err := a.provider.Exchange(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user info"})
		return
	}

	user, err := a.users.Upsert(profile.ID, profile.Name, profile.Email)
	if err != nil {
		a.log.Error("identity upsert failed", zap.String("linkedin_id", profile.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user info"})
		return
	}

	token, err := utils.GenerateToken(a.secret, *user, utils.TokenTTL)
	if err != nil {
		a.log.Error("token mint failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user info"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":    user.LinkedInID,
			"name":  user.Name,
			"email": user.Email,
		},
	})
}
