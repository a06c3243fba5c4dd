package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/verity-catalog/verity-catalog/internal/app"
	"github.com/verity-catalog/verity-catalog/internal/catalog"
	"github.com/verity-catalog/verity-catalog/internal/platform/cache"
	"github.com/verity-catalog/verity-catalog/internal/platform/db"
	"github.com/verity-catalog/verity-catalog/internal/verify"
	"github.com/verity-catalog/verity-catalog/internal/vision"
	"github.com/verity-catalog/verity-catalog/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis cache unavailable, detector cache disabled", slog.Any("error", err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	var detector verify.ConceptDetector = vision.Noop{}
	if cfg.VisionEndpoint != "" {
		client := vision.NewClient(vision.Config{
			Endpoint:   cfg.VisionEndpoint,
			APIKey:     cfg.VisionAPIKey,
			Timeout:    cfg.VisionTimeout,
			RatePerSec: cfg.VisionRatePerSec,
			Burst:      cfg.VisionBurst,
		})
		detector = vision.NewCachedDetector(client, redisClient, cfg.VisionCacheTTL)
	}

	catalogRepo := catalog.NewRepository(pool)
	runRepo := verify.NewRepository(pool)
	verifyService := verify.NewService(catalogRepo, runRepo, detector, nil, logger, verify.ServiceConfig{
		PageSize:          cfg.VerifyPageSize,
		BatchConcurrency:  cfg.VerifyConcurrency,
		VisionConcurrency: cfg.VisionConcurrency,
	})

	runJob := jobs.NewVerificationRunJob(verifyService, logger, nil)
	sweepJob := jobs.NewCatalogSweepJob(verifyService, logger, nil)

	sweepTask, err := jobs.NewCatalogSweepTask(jobs.CatalogSweepPayload{})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskVerificationRun, Handler: runJob.Handle},
			{Type: jobs.TaskCatalogSweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 2 * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
