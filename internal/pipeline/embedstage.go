package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/docsift/docsift/internal/embed"
	dserrors "github.com/docsift/docsift/internal/errors"
)

// EmbeddingStage generates one vector per chunk. Chunks go to the provider
// in fixed-size batches with bounded concurrency; transient provider errors
// are retried with backoff, fatal ones fail the run immediately.
type EmbeddingStage struct {
	embedder  embed.Embedder
	batchSize int
	workers   int
	timeout   time.Duration
	retry     dserrors.RetryConfig
}

// NewEmbeddingStage creates the embedding stage.
func NewEmbeddingStage(embedder embed.Embedder, batchSize, workers int, timeout time.Duration) *EmbeddingStage {
	if batchSize <= 0 {
		batchSize = embed.DefaultBatchSize
	}
	if workers <= 0 {
		workers = 1
	}
	return &EmbeddingStage{
		embedder:  embedder,
		batchSize: batchSize,
		workers:   workers,
		timeout:   timeout,
		retry:     dserrors.DefaultRetryConfig(),
	}
}

func (s *EmbeddingStage) Name() string { return StageEmbedding }

func (s *EmbeddingStage) Execute(ctx context.Context, run *Context) *StageResult {
	if len(run.Chunks) == 0 {
		return failure(dserrors.New(dserrors.ErrCodeInternal, "embedding ran before chunking", nil))
	}

	texts := make([]string, len(run.Chunks))
	for i, c := range run.Chunks {
		texts[i] = c.Text
	}

	vectors := make([][]float32, len(texts))
	batches := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for start := 0; start < len(texts); start += s.batchSize {
		start := start
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches++

		g.Go(func() error {
			return dserrors.Retry(gctx, s.retry, func() error {
				callCtx := gctx
				if s.timeout > 0 {
					var cancel context.CancelFunc
					callCtx, cancel = context.WithTimeout(gctx, s.timeout)
					defer cancel()
				}

				batch, err := s.embedder.EmbedBatch(callCtx, texts[start:end])
				if err != nil {
					return err
				}
				if len(batch) != end-start {
					return dserrors.New(dserrors.ErrCodeEmbeddingFailed,
						fmt.Sprintf("provider returned %d vectors for %d texts", len(batch), end-start), nil)
				}
				copy(vectors[start:end], batch)
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		return failure(err)
	}

	run.Vectors = vectors
	return success(map[string]any{
		"vectors": len(vectors),
		"batches": batches,
		"model":   s.embedder.ModelName(),
	})
}

// Rollback is a no-op: vectors live only in the run context.
func (s *EmbeddingStage) Rollback(ctx context.Context, run *Context) error {
	return nil
}
