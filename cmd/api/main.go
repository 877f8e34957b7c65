// Command api is the EventCentral server: the control API that starts and
// stops per-event polling sessions, and the public read API.
//
// Usage:
//
//	eventcentral-api
//	API_PORT=8080 TRANSPORT=api eventcentral-api

// @title EventCentral API
// @version 1.0.0
// @description Youth baseball box score ingestion. Control endpoints start and stop per-event polling sessions; read endpoints serve games, players of the game and leaderboards.
// @host localhost:3456
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @contact.name EventCentral
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/albapepper/eventcentral/internal/api"
	"github.com/albapepper/eventcentral/internal/app"
	"github.com/albapepper/eventcentral/internal/cache"
	"github.com/albapepper/eventcentral/internal/config"
	"github.com/albapepper/eventcentral/internal/listener"
	"github.com/albapepper/eventcentral/internal/maintenance"

	_ "github.com/albapepper/eventcentral/docs" // swagger docs
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("Connecting to database...", "driver", cfg.DBDriver)
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer a.Close()
	logger.Info("Database connected", "driver", cfg.DBDriver)

	appCache := cache.New(cfg.CacheEnabled)
	defer appCache.Close()
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	manager := a.Manager(maintenance.InvalidateReadCache(appCache, logger))
	logger.Info("Session manager ready",
		"transport", cfg.Transport,
		"max_sessions", cfg.MaxSessions,
		"poll_interval", cfg.PollInterval,
		"teams_file", cfg.TeamsFile)

	// LISTEN/NOTIFY control channel needs a real Postgres connection
	if a.Pool != nil {
		go listener.Start(ctx, cfg.DatabaseURL, manager, logger)
	}

	go maintenance.Start(ctx, a.Store, manager, maintenance.ConfigFrom(cfg), logger)

	router := api.NewRouter(a.Store, manager, appCache, cfg, logger)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting EventCentral API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Stop sessions before the deferred store close.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error("Sessions did not stop in time", "error", err)
	}
	logger.Info("Server stopped")
}
