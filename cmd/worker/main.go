package main

import (
	"context"
	"time"

	"github.com/dethiai/dethiai-backend/internal/config"
	"github.com/dethiai/dethiai-backend/internal/database"
	"github.com/dethiai/dethiai-backend/internal/llm"
	"github.com/dethiai/dethiai-backend/internal/logger"
	"github.com/dethiai/dethiai-backend/internal/ocr"
	"github.com/dethiai/dethiai-backend/internal/queue"
	"github.com/dethiai/dethiai-backend/internal/repository"
	"github.com/dethiai/dethiai-backend/internal/storage"
	"github.com/dethiai/dethiai-backend/internal/worker"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Int("concurrency", cfg.WorkerConcurrency).
		Msg("Starting DethiAI Worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

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

	// ─── Build the Pipeline Processor ──────────────────────────────────
	llmClient := llm.NewClient(cfg)
	processor := worker.NewProcessor(
		repository.NewDocumentRepository(pool),
		repository.NewElementRepository(pool),
		repository.NewGenExamRepository(pool),
		store,
		ocr.NewRasterizer(),
		llmClient,
		llmClient,
		llmClient,
		log,
	)

	// ─── Run the asynq Server ──────────────────────────────────────────
	// Page OCR gets the most workers; extraction is one task per document
	// and generation calls are the slowest, so they share the rest.
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues: map[string]int{
			config.QueueKey.OCRLane:      5,
			config.QueueKey.GenerateLane: 3,
			config.QueueKey.ExtractLane:  2,
		},
		Logger: asynqLogger{logger.Component(log, "asynq")},
	})

	// asynq handles SIGINT/SIGTERM itself and drains in-flight tasks.
	if err := srv.Run(processor.Handler(queueClient)); err != nil {
		log.Fatal().Err(err).Msg("Worker server stopped")
	}

	log.Info().Msg("Shutdown complete")
}

// asynqLogger adapts zerolog to asynq's logging interface.
type asynqLogger struct {
	log zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug().Msgf("%v", args) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info().Msgf("%v", args) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn().Msgf("%v", args) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error().Msgf("%v", args) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal().Msgf("%v", args) }

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
