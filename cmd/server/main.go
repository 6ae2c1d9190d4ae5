package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pedrogk/msgmux/internal/api"
	"github.com/pedrogk/msgmux/internal/config"
	"github.com/pedrogk/msgmux/internal/credentials"
	"github.com/pedrogk/msgmux/internal/db"
	"github.com/pedrogk/msgmux/internal/events"
	"github.com/pedrogk/msgmux/internal/metrics"
	"github.com/pedrogk/msgmux/internal/session"
	"github.com/pedrogk/msgmux/internal/transport"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Setup logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Database connection
	database, err := db.NewConnection(cfg.Database.URL, cfg.Database.MaxConnections, cfg.Database.MaxIdleConns)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	repo := db.NewRepository(database)

	// Event sink
	publisher, err := events.NewRedisPublisher(cfg.Redis.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer publisher.Close()

	// Shared collaborators
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	credStore := credentials.NewFSStore(cfg.Sessions.CredentialDir, logger)
	factory := transport.NewWSFactory(cfg.Gateway.URL, cfg.Gateway.HandshakeTimeout, logger)

	manager := session.NewManager(factory, credStore, repo, publisher, collector, logger, cfg.Sessions)

	ctx, cancel := context.WithCancel(context.Background())

	heartbeat := session.NewHeartbeat(manager.Registry(), collector, logger, cfg.Sessions.HeartbeatInterval)
	go heartbeat.Run(ctx)

	// HTTP surface
	server := api.NewServer(cfg, manager, repo, logger)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.Router,
	}

	go func() {
		logger.Info("Server started", zap.String("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown failed", zap.Error(err))
	}

	manager.Shutdown()
	logger.Info("Server exited")
}
