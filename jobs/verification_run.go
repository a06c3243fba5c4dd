package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/verity-catalog/verity-catalog/internal/jobs"
	"github.com/verity-catalog/verity-catalog/internal/verify"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// VerificationRunJob processes queued batch verification runs.
type VerificationRunJob struct {
	Service *verify.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewVerificationRunJob wires dependencies for the run handler.
func NewVerificationRunJob(service *verify.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *VerificationRunJob {
	return &VerificationRunJob{
		Service: service,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *VerificationRunJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("verification run: handler not configured")
	}
	var payload VerificationRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RunID == uuid.Nil {
		return asynq.SkipRetry
	}
	if j.Service == nil {
		return errors.New("verification run: service not configured")
	}

	start := j.now()
	tracker := j.metrics().Track(TaskVerificationRun)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("run_id", payload.RunID.String()))
	logger.Info("starting verification run")

	if err := j.Service.ProcessRun(ctx, payload.RunID); err != nil {
		resultErr = err
		if errors.Is(err, verify.ErrRunNotFound) {
			logger.Warn("run vanished before processing")
			return asynq.SkipRetry
		}
		logger.Error("process run", slog.Any("error", err))
		return resultErr
	}

	run, err := j.Service.GetRun(ctx, payload.RunID)
	if err != nil {
		resultErr = err
		return resultErr
	}
	j.metrics().AddProductsChecked(string(verify.StatusVerified), run.Verified)
	j.metrics().AddProductsChecked(string(verify.StatusUnverified), run.Unverified)

	logger.Info("completed verification run",
		slog.Int("total", run.Total),
		slog.Int("verified", run.Verified),
		slog.Int("unverified", run.Unverified),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *VerificationRunJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskVerificationRun))
	}
	return slog.Default().With(slog.String("job", TaskVerificationRun))
}

func (j *VerificationRunJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *VerificationRunJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
