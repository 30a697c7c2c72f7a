package driven

import (
	"context"

	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
)

// RunStore defines the driven port for run history persistence. History is
// write-only from the pipeline's point of view; nothing in a run reads it.
type RunStore interface {
	SaveRun(ctx context.Context, run model.RunResult) error
	// ListRuns returns the most recent runs first, at most limit of them.
	ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error)
	// GetRun returns nil, nil when no run has the given ID.
	GetRun(ctx context.Context, id string) (*model.RunRecord, error)
}
