package pipeline

import (
	"context"
	"time"
)

// Stage names reported in results and logs.
const (
	StageValidation = "validation"
	StageParsing    = "parsing"
	StageChunking   = "chunking"
	StageEmbedding  = "embedding"
	StageIndexing   = "indexing"
	StageStorage    = "storage"
)

// StageResult reports one stage execution. Stats are observability-only;
// no stage reads another stage's result.
type StageResult struct {
	Success  bool
	Err      error
	Duration time.Duration
	Stats    map[string]any
}

func success(stats map[string]any) *StageResult {
	return &StageResult{Success: true, Stats: stats}
}

func failure(err error) *StageResult {
	return &StageResult{Success: false, Err: err}
}

// Stage is one step of the ingestion pipeline.
type Stage interface {
	// Name returns the stage identifier used in results and logs.
	Name() string

	// Execute runs the stage against the shared run context. A stage that
	// fails must clean up its own partial external state before returning;
	// the orchestrator only rolls back previously completed stages.
	Execute(ctx context.Context, run *Context) *StageResult

	// Rollback undoes externally visible side effects of a completed
	// Execute. It must be a safe no-op when Execute never ran and must not
	// fail on "nothing to undo".
	Rollback(ctx context.Context, run *Context) error
}
