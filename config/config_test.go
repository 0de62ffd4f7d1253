package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresSecretAndDatabase(t *testing.T) {
	// Set-but-empty must fail just like unset.
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsEmptySecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "chat.db")
	_, err := Load()
	require.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadRejectsEmptyDatabaseURL(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	require.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoadReadsEnvironment(t *testing.T) {
	req := require.New(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "chat.db")
	t.Setenv("LINKEDIN_CLIENT_ID", "client-id")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	req.NoError(err)
	req.Equal("secret", cfg.JWTSecret)
	req.Equal("chat.db", cfg.DatabaseURL)
	req.Equal("client-id", cfg.LinkedInClientID)
	req.Equal("9090", cfg.Port)
	req.Equal("openid profile email", cfg.Scope, "default scope")
}
