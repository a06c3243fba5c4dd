package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskVerificationRun processes one queued batch verification run.
	TaskVerificationRun = "verify:run"
	// TaskCatalogSweep creates and processes a scheduled full-catalog run.
	TaskCatalogSweep = "verify:sweep"
)

// VerificationRunPayload identifies the run a worker should process.
type VerificationRunPayload struct {
	RunID uuid.UUID `json:"run_id"`
}

// NewVerificationRunTask constructs an Asynq task for one run.
func NewVerificationRunTask(payload VerificationRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskVerificationRun, data), nil
}

// CatalogSweepPayload narrows which products a sweep covers. Empty
// filters mean the whole catalog.
type CatalogSweepPayload struct {
	Search string `json:"search,omitempty"`
	Brand  string `json:"brand,omitempty"`
}

// NewCatalogSweepTask constructs an Asynq task for a catalog sweep.
func NewCatalogSweepTask(payload CatalogSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogSweep, data), nil
}
