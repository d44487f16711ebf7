package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/xaenox/wellness-coach/internal/accounts"
	"github.com/xaenox/wellness-coach/internal/agent"
	"github.com/xaenox/wellness-coach/internal/completion"
	"github.com/xaenox/wellness-coach/internal/insights"
	"github.com/xaenox/wellness-coach/internal/pipeline"
	"github.com/xaenox/wellness-coach/internal/server"
	"github.com/xaenox/wellness-coach/internal/session"
	"github.com/xaenox/wellness-coach/internal/storage"
	"github.com/xaenox/wellness-coach/pkg/config"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize the document store, the durable channel for every write
	docs, err := storage.NewDocumentStore(cfg.Database.DocumentDir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize document store", zap.Error(err))
	}

	// Initialize the structured store
	var structured storage.StructuredStore
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory structured storage")
		structured = storage.NewMemoryStore()
	} else {
		logger.Info("Using PostgreSQL structured storage")
		structured, err = storage.NewPostgresStore(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			// Degraded mode: the document store alone carries the data.
			logger.Warn("PostgreSQL unavailable, running on the document store only", zap.Error(err))
			structured = nil
		}
	}

	store := storage.NewHybrid(structured, docs, logger)
	defer store.Close()

	// Initialize the completion service and the agents
	svc := completion.NewOpenAIService(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second,
		logger,
	)
	router := agent.NewRouter(svc, logger)
	responder := agent.NewResponder(svc, store, logger)
	safety := agent.NewSafetyFilter(svc, logger)
	extractor := agent.NewExtractor(svc, logger)

	p := pipeline.New(router, responder, safety, extractor, store, logger)
	registry := session.NewRegistry(store, logger)
	agg := insights.NewAggregator(store, logger)
	acc := accounts.NewService(store, logger)

	srv := server.New(p, registry, agg, acc, store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
