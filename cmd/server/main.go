package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dethiai/dethiai-backend/internal/config"
	"github.com/dethiai/dethiai-backend/internal/database"
	"github.com/dethiai/dethiai-backend/internal/handler"
	"github.com/dethiai/dethiai-backend/internal/logger"
	"github.com/dethiai/dethiai-backend/internal/queue"
	"github.com/dethiai/dethiai-backend/internal/repository"
	"github.com/dethiai/dethiai-backend/internal/router"
	"github.com/dethiai/dethiai-backend/internal/service"
	"github.com/dethiai/dethiai-backend/internal/storage"
	"github.com/dethiai/dethiai-backend/internal/validator"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting DethiAI Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Connect to Object Storage ─────────────────────────────────────
	store, err := storage.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init object storage")
	}
	if err := store.EnsureBucket(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure storage bucket")
	}

	// ─── Connect to Task Queue ─────────────────────────────────────────
	redisOpt, err := queue.RedisOpt(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid Redis URL")
	}
	queueClient := queue.NewClient(redisOpt)
	defer queueClient.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	documentRepo := repository.NewDocumentRepository(pool)
	elementRepo := repository.NewElementRepository(pool)
	genExamRepo := repository.NewGenExamRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	cache := service.NewRedisCache(rdb, log)
	documentService := service.NewDocumentService(cfg, documentRepo, store, queueClient, cache, log)
	questionService := service.NewQuestionService(documentRepo, elementRepo, cache, cfg.QuestionCacheTTL, log)
	generationService := service.NewGenerationService(documentRepo, elementRepo, genExamRepo, queueClient, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Document:   handler.NewDocumentHandler(documentService, questionService),
		Generation: handler.NewGenerationHandler(generationService),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
