package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/verity-catalog/verity-catalog/internal/jobs"
	"github.com/verity-catalog/verity-catalog/internal/verify"
)

// CatalogSweepJob runs a scheduled verification pass over the catalog.
type CatalogSweepJob struct {
	Service *verify.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewCatalogSweepJob wires dependencies for the sweep handler.
func NewCatalogSweepJob(service *verify.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogSweepJob {
	return &CatalogSweepJob{
		Service: service,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle creates a fresh run covering the payload filters and processes
// it in place.
func (j *CatalogSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("catalog sweep: handler not configured")
	}
	var payload CatalogSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if j.Service == nil {
		return errors.New("catalog sweep: service not configured")
	}

	start := j.now()
	tracker := j.metrics().Track(TaskCatalogSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.String("search", payload.Search),
		slog.String("brand", payload.Brand),
	)
	logger.Info("starting catalog sweep")

	run, err := j.Service.StartRun(ctx, verify.RunFilters{Search: payload.Search, Brand: payload.Brand})
	if err != nil {
		resultErr = err
		logger.Error("create sweep run", slog.Any("error", err))
		return resultErr
	}
	if err := j.Service.ProcessRun(ctx, run.ID); err != nil {
		resultErr = err
		logger.Error("process sweep run", slog.String("run_id", run.ID.String()), slog.Any("error", err))
		return resultErr
	}

	final, err := j.Service.GetRun(ctx, run.ID)
	if err != nil {
		resultErr = err
		return resultErr
	}
	j.metrics().AddProductsChecked(string(verify.StatusVerified), final.Verified)
	j.metrics().AddProductsChecked(string(verify.StatusUnverified), final.Unverified)

	logger.Info("completed catalog sweep",
		slog.String("run_id", run.ID.String()),
		slog.Int("total", final.Total),
		slog.Int("verified", final.Verified),
		slog.Int("unverified", final.Unverified),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *CatalogSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCatalogSweep))
	}
	return slog.Default().With(slog.String("job", TaskCatalogSweep))
}

func (j *CatalogSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CatalogSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
