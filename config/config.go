package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every externally supplied runtime parameter. JWTSecret and
// DatabaseURL are required; a process without them cannot mint tokens or
// persist messages, so Load fails and the caller exits.
type Config struct {
	LinkedInClientID     string `envconfig:"LINKEDIN_CLIENT_ID"`
	LinkedInClientSecret string `envconfig:"LINKEDIN_CLIENT_SECRET"`
	Scope                string `envconfig:"SCOPE" default:"openid profile email"`
	RedirectURI          string `envconfig:"REDIRECT_URI"`
	DatabaseURL          string `envconfig:"DATABASE_URL" required:"true"`
	JWTSecret            string `envconfig:"JWT_SECRET" required:"true"`
	Port                 string `envconfig:"PORT" default:"8080"`
	LogLevel             string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	// envconfig's required check passes a variable that is set but empty.
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("config error: JWT_SECRET must not be empty")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("config error: DATABASE_URL must not be empty")
	}
	return cfg, nil
}
