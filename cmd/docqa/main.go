package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lawgic-ai/docqa/internal/api"
	"github.com/lawgic-ai/docqa/internal/config"
	"github.com/lawgic-ai/docqa/internal/extractor"
	"github.com/lawgic-ai/docqa/internal/llm"
	"github.com/lawgic-ai/docqa/internal/repository"
	"github.com/lawgic-ai/docqa/internal/service"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Initialize the persisted index database
	db, err := repository.NewDB(cfg.Storage.IndexPath)
	if err != nil {
		logger.Fatal("Failed to initialize index database", zap.Error(err))
	}
	defer db.Close()

	// Initialize the Gemini client (embeddings + generation)
	gemini, err := llm.NewGeminiClient(ctx, cfg.LLM, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Gemini client", zap.Error(err))
	}

	// Shared pipeline components
	index := repository.NewVectorIndex(db, gemini, logger)
	pdfExtractor := extractor.NewPDFExtractor(cfg.Ingest.MaxPages, logger)
	chunker := service.NewChunker(
		cfg.Chunker.ChunkSize,
		cfg.Chunker.ChunkOverlap,
		cfg.Chunker.MinChunkChars,
		cfg.Chunker.MaxChunks,
		logger,
	)
	tracker := service.NewProgressTracker()
	gate := service.NewRateGate(
		cfg.RateLimit.MaxRequestsPerMinute,
		cfg.RateLimit.Window,
		cfg.RateLimit.Cooldown,
		logger,
	)
	ledger := service.NewUsageLedger(cfg.Usage.MaxDailyTokens, logger)
	cache := service.NewResponseCache(cfg.Cache.TTL, logger)

	// Initialize services
	ingestService := service.NewIngestService(cfg, tracker, chunker, pdfExtractor, index, logger)
	queryService := service.NewQueryService(cfg, cache, ledger, gate, index, gemini, logger)

	// Setup router
	handler := api.NewHandler(ingestService, queryService, tracker, ledger, gate, cache, api.Limits{
		MaxDailyTokens:       cfg.Usage.MaxDailyTokens,
		MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
	})
	router := api.SetupRouter(handler, api.RouterConfig{
		APIKey:       cfg.Admin.APIKey,
		AllowOrigins: []string{"*"},
		UploadsDir:   cfg.Storage.UploadsDir,
	})

	// Create HTTP server. Writes stay open long enough for a slow model call.
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting document QA server",
			zap.String("address", cfg.Address()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
