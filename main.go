package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/abeme/go_chat_api/config"
	"github.com/abeme/go_chat_api/controller"
	"github.com/abeme/go_chat_api/entity"
	"github.com/abeme/go_chat_api/linkedin"
	"github.com/abeme/go_chat_api/middleware"
	"github.com/abeme/go_chat_api/relay"
	"github.com/abeme/go_chat_api/service"
	"github.com/abeme/go_chat_api/ws"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("opening database", zap.String("url", cfg.DatabaseURL))
	db, err := gorm.Open(sqlite.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&entity.User{}, &entity.Message{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	secret := []byte(cfg.JWTSecret)
	users := service.NewUserService(db)
	messages := service.NewMessageService(db)

	hub := ws.NewHub(logger)
	rel := relay.New(messages, hub, logger)

	provider := linkedin.NewClient(cfg.LinkedInClientID, cfg.LinkedInClientSecret, cfg.RedirectURI, cfg.Scope, logger)
	authCtrl := controller.NewAuthController(provider, users, secret, logger)
	msgCtrl := controller.NewMessageController(rel)

	r := gin.Default()
	r.Use(cors.Default())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/auth/linkedin", authCtrl.Redirect)
	r.GET("/auth/linkedin/callback", authCtrl.Callback)

	protected := r.Group("/")
	protected.Use(middleware.AuthMiddleware(secret))
	protected.POST("/messages", msgCtrl.Send)
	protected.GET("/messages/:userId", msgCtrl.History)

	r.GET("/ws", func(c *gin.Context) {
		ws.ServeWS(hub, rel, secret, logger, c)
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := hub.Shutdown(shutdownGrace); err != nil {
		logger.Warn("hub shutdown", zap.Error(err))
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
