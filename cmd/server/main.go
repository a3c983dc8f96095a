package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/onco-review-server/internal/api"
	"github.com/onco-review-server/internal/config"
	"github.com/onco-review-server/internal/dataset"
	"github.com/onco-review-server/internal/domain"
	"github.com/onco-review-server/internal/logging"
	"github.com/onco-review-server/internal/service"
	"github.com/onco-review-server/pkg/llm"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := logging.NewLogger(cfg.Logging)

	// Load the patient dataset
	store := dataset.NewStore(dataset.NewLoader(logger), cfg.Dataset.CSVPath, logger)
	if err := store.Reload(context.Background()); err != nil {
		if cfg.Dataset.Strict {
			logger.WithError(err).Fatal("Failed to load patient dataset")
		}
		logger.WithError(err).Warn("Patient dataset unavailable at startup, serving empty set")
	}
	logger.WithFields(logrus.Fields{
		"csv_path": cfg.Dataset.CSVPath,
		"patients": store.Len(),
	}).Info("Patient dataset loaded")

	// Select the insight cache backend
	var cache domain.InsightCache
	switch cfg.Cache.Backend {
	case "redis":
		redisCache, err := llm.NewRedisInsightCache(&cfg.Cache, logger)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, falling back to in-memory insight cache")
			cache = llm.NewMemoryInsightCache(cfg.Cache.MaxEntries, cfg.Cache.DefaultTTL)
		} else {
			defer redisCache.Close()
			cache = redisCache
		}
	default:
		cache = llm.NewMemoryInsightCache(cfg.Cache.MaxEntries, cfg.Cache.DefaultTTL)
	}

	// The model client is optional; without an API key every insight request
	// takes the deterministic path.
	var model service.InsightModel
	if cfg.LLM.APIKey != "" {
		client, err := llm.NewClient(&cfg.LLM, logger)
		if err != nil {
			logger.WithError(err).Warn("Model client unavailable, insights degrade to deterministic generation")
		} else {
			model = client
		}
	} else {
		logger.Info("No model API key configured, insights use deterministic generation only")
	}

	insights := service.NewInsightService(model, cache, cfg.LLM.Timeout, logger)

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting oncology review server")

	// Create server
	server := api.NewServer(configManager, store, insights, logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
