package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/verity-catalog/verity-catalog/cmd/verity/cli"
	"github.com/verity-catalog/verity-catalog/internal/app"
	"github.com/verity-catalog/verity-catalog/internal/catalog"
	"github.com/verity-catalog/verity-catalog/internal/observability"
	"github.com/verity-catalog/verity-catalog/internal/platform/cache"
	"github.com/verity-catalog/verity-catalog/internal/platform/db"
	"github.com/verity-catalog/verity-catalog/internal/verify"
	verifyhttp "github.com/verity-catalog/verity-catalog/internal/verify/http"
	"github.com/verity-catalog/verity-catalog/internal/vision"
	"github.com/verity-catalog/verity-catalog/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(cli.Run(ctx, cfg.RedisAddr, os.Args[2:], os.Stdout, os.Stderr))
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, detector cache disabled", slog.Any("error", err))
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

	metrics := observability.NewMetrics()

	catalogRepo := catalog.NewRepository(dbpool)
	runRepo := verify.NewRepository(dbpool)
	verifyService := verify.NewService(catalogRepo, runRepo, detector, metrics, logger, verify.ServiceConfig{
		PageSize:          cfg.VerifyPageSize,
		BatchConcurrency:  cfg.VerifyConcurrency,
		VisionConcurrency: cfg.VisionConcurrency,
	})

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("init jobs client, runs must be processed manually", slog.Any("error", err))
	}
	if jobsClient != nil {
		defer func() {
			if err := jobsClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	verifyHandler := verifyhttp.NewHandler(logger, verifyService, jobsClient)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		VerifyHandler: verifyHandler,
		JobHandler:    jobHandler,
		Metrics:       metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
