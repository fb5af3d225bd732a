package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docsift/docsift/internal/chunk"
	dserrors "github.com/docsift/docsift/internal/errors"
	"github.com/docsift/docsift/internal/store"
)

// StageStat is the per-stage observability record on an IngestResult.
type StageStat struct {
	Name     string
	Duration time.Duration
	Stats    map[string]any
}

// IngestResult is the outcome of one ingestion run.
type IngestResult struct {
	Success    bool
	Duplicate  bool
	DocumentID string
	Collection string
	ChunkCount int

	// OriginatingStage names the stage that failed; empty on success.
	OriginatingStage string
	Err              error

	Warnings []string
	Stages   []StageStat
	Duration time.Duration
}

// Orchestrator sequences the pipeline stages for each document and owns the
// rollback protocol: on failure, every previously completed stage is rolled
// back in reverse order. The failed stage is responsible for its own
// cleanup inside Execute and is not rolled back.
type Orchestrator struct {
	stages   []Stage
	registry store.DocumentRegistry
	vectors  store.VectorIndex
	lexical  store.LexicalIndex
	objects  store.ObjectStore
	logger   *slog.Logger
}

// NewOrchestrator creates an orchestrator over an explicit stage sequence.
// The registry may be nil, which disables duplicate detection and
// re-ingestion bookkeeping (useful in tests).
func NewOrchestrator(stages []Stage, registry store.DocumentRegistry,
	vectors store.VectorIndex, lexical store.LexicalIndex, objects store.ObjectStore,
	logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		stages:   stages,
		registry: registry,
		vectors:  vectors,
		lexical:  lexical,
		objects:  objects,
		logger:   logger,
	}
}

// Process runs the pipeline for one document.
func (o *Orchestrator) Process(ctx context.Context, run *Context) *IngestResult {
	started := time.Now()
	result := &IngestResult{
		DocumentID: run.DocumentID,
		Collection: run.Collection(),
	}

	log := o.logger.With(
		slog.String("run_id", run.RunID),
		slog.String("document_id", run.DocumentID),
		slog.String("collection", result.Collection),
	)

	if err := run.Scope.Validate(); err != nil {
		result.Err = dserrors.New(dserrors.ErrCodeInvalidInput, err.Error(), err)
		result.Duration = time.Since(started)
		return result
	}

	// Duplicate content in the same collection is not an error: report it
	// and stop before any stage runs.
	if dup, err := o.checkDuplicate(ctx, run); err != nil {
		result.Err = err
		result.Duration = time.Since(started)
		return result
	} else if dup != nil && dup.ID != run.DocumentID {
		log.Info("duplicate document detected",
			slog.String("existing_document_id", dup.ID),
			slog.String("content_hash", run.ContentHash))
		result.Success = true
		result.Duplicate = true
		result.ChunkCount = dup.ChunkCount
		result.Duration = time.Since(started)
		return result
	}

	// Re-ingesting a known document ID replaces it: remove the prior
	// version's rows and objects before running the pipeline.
	if err := o.removePrior(ctx, run, log); err != nil {
		result.Err = err
		result.Duration = time.Since(started)
		return result
	}

	o.markStatus(ctx, run, 0, store.DocumentStatusIngesting)

	var completed []Stage
	for _, stage := range o.stages {
		stageStart := time.Now()
		sr := stage.Execute(ctx, run)
		elapsed := time.Since(stageStart)

		if sr.Success {
			result.Stages = append(result.Stages, StageStat{
				Name:     stage.Name(),
				Duration: elapsed,
				Stats:    sr.Stats,
			})
			completed = append(completed, stage)
			log.Debug("stage completed",
				slog.String("stage", stage.Name()),
				slog.Duration("duration", elapsed))
			continue
		}

		log.Warn("stage failed",
			slog.String("stage", stage.Name()),
			slog.Duration("duration", elapsed),
			slog.String("error", fmt.Sprint(sr.Err)))

		o.rollback(ctx, run, completed, log)
		o.markStatus(ctx, run, 0, store.DocumentStatusFailed)

		result.OriginatingStage = stage.Name()
		result.Err = sr.Err
		result.Warnings = run.Warnings
		result.Duration = time.Since(started)
		return result
	}

	o.markStatus(ctx, run, len(run.Chunks), store.DocumentStatusComplete)

	result.Success = true
	result.ChunkCount = len(run.Chunks)
	result.Warnings = run.Warnings
	result.Duration = time.Since(started)
	log.Info("document ingested",
		slog.Int("chunks", result.ChunkCount),
		slog.Duration("duration", result.Duration))
	return result
}

// rollback undoes completed stages in reverse order of completion. Rollback
// failures are best-effort: they become warnings on the run, never errors.
func (o *Orchestrator) rollback(ctx context.Context, run *Context, completed []Stage, log *slog.Logger) {
	for i := len(completed) - 1; i >= 0; i-- {
		stage := completed[i]
		if err := stage.Rollback(ctx, run); err != nil {
			log.Error("rollback failed",
				slog.String("stage", stage.Name()),
				slog.String("error", err.Error()))
			run.Warn(fmt.Sprintf("rollback of %s stage failed: %v", stage.Name(), err))
		}
	}
}

// checkDuplicate looks up a completed document with the same content hash in
// the same collection.
func (o *Orchestrator) checkDuplicate(ctx context.Context, run *Context) (*store.DocumentRecord, error) {
	if o.registry == nil {
		return nil, nil
	}
	return o.registry.FindByHash(ctx, run.Collection(), run.ContentHash)
}

// removePrior deletes all state belonging to an earlier ingestion of the
// same document ID: index rows, stored objects, and the registry record.
func (o *Orchestrator) removePrior(ctx context.Context, run *Context, log *slog.Logger) error {
	if o.registry == nil {
		return nil
	}
	prior, err := o.registry.Get(ctx, run.DocumentID)
	if err != nil {
		return err
	}
	if prior == nil {
		return nil
	}

	log.Info("replacing prior document version",
		slog.Int("prior_chunks", prior.ChunkCount))

	ids := make([]string, prior.ChunkCount)
	for i := range ids {
		ids[i] = chunk.ChunkID(prior.ID, i)
	}

	if o.vectors != nil {
		if err := o.vectors.Delete(ctx, prior.Collection, ids); err != nil {
			return err
		}
	}
	if o.lexical != nil {
		if err := o.lexical.Delete(ctx, prior.Collection, ids); err != nil {
			return err
		}
	}
	if o.objects != nil {
		prefix := fmt.Sprintf("%s/documents/%s", prior.Collection, prior.ID)
		if err := o.objects.DeletePrefix(ctx, prefix); err != nil {
			return err
		}
	}
	return o.registry.Delete(ctx, prior.ID)
}

// markStatus records the run's lifecycle state in the registry.
func (o *Orchestrator) markStatus(ctx context.Context, run *Context, chunks int, status store.DocumentStatus) {
	if o.registry == nil {
		return
	}
	err := o.registry.Save(ctx, &store.DocumentRecord{
		ID:          run.DocumentID,
		Filename:    run.Filename,
		ContentHash: run.ContentHash,
		Collection:  run.Collection(),
		ChunkCount:  chunks,
		Status:      status,
		IngestedAt:  time.Now(),
	})
	if err != nil {
		o.logger.Warn("registry update failed",
			slog.String("document_id", run.DocumentID),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
	}
}
