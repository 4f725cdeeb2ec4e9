package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/amd-treatment-sim/internal/api"
	"github.com/amd-treatment-sim/internal/config"
	"github.com/amd-treatment-sim/internal/logging"
	"github.com/amd-treatment-sim/internal/resultstore"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := logging.NewLogger(cfg.Logging)

	spec, err := config.LoadProtocol(cfg.Simulation.ProtocolPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load protocol specification")
	}

	var store resultstore.Store
	switch cfg.Store.Backend {
	case "postgres":
		store, err = resultstore.NewPostgresStoreFromURL(cfg.Store.PostgresURL)
	default:
		store, err = resultstore.NewSQLiteStore(cfg.Store.SQLitePath)
	}
	if err != nil {
		logger.WithError(err).Fatal("Failed to open results store")
	}
	defer store.Close()

	var cache *resultstore.CacheClient
	if cfg.Cache.Enabled {
		cache, err = resultstore.NewCacheClient(cfg.Cache)
		if err != nil {
			// The cache is an optimization; run without it.
			logger.WithError(err).Warn("Redis cache unavailable, continuing without it")
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	server, err := api.NewServer(cfg, spec, store, cache, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create server")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	logger.WithField("port", cfg.Server.Port).Info("Starting AMD treatment simulation server")
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}
