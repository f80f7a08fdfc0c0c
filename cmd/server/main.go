package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentx/aichat/internal/api"
	"github.com/agentx/aichat/internal/auth"
	"github.com/agentx/aichat/internal/config"
	"github.com/agentx/aichat/internal/database"
	"github.com/agentx/aichat/internal/providers/factory"
	"github.com/agentx/aichat/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("auth.jwt_secret is required (or set AICHAT_JWT_SECRET)")
	}
	if cfg.Auth.SealKey == "" {
		logger.Warn("No seal key configured, API keys are stored in plain text. Set AICHAT_SEAL_KEY in production!")
	}

	// Connect to database
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(db, cfg.Database); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}

	// Initialize provider registry
	providerSet, err := factory.BuildRegistry(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build provider registry")
	}

	// Initialize services
	ctx := context.Background()
	svc, err := services.NewServices(ctx, db, providerSet, auth.NewKeySealer(cfg.Auth.SealKey), cfg.Server.Language, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize services")
	}

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	app := api.NewApp(cfg, svc, jwtService, logger)

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		logger.WithField("addr", addr).Info("AIChat starting")
		if err := app.Listen(addr); err != nil {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
}
