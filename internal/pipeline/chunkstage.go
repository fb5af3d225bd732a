package pipeline

import (
	"context"

	"github.com/docsift/docsift/internal/chunk"
	dserrors "github.com/docsift/docsift/internal/errors"
)

// ChunkingStage splits parsed pages into token-bounded, overlapping chunks.
type ChunkingStage struct {
	chunker *chunk.Chunker
}

// NewChunkingStage creates the chunking stage.
func NewChunkingStage(chunker *chunk.Chunker) *ChunkingStage {
	return &ChunkingStage{chunker: chunker}
}

func (s *ChunkingStage) Name() string { return StageChunking }

func (s *ChunkingStage) Execute(ctx context.Context, run *Context) *StageResult {
	if run.Document == nil {
		return failure(dserrors.New(dserrors.ErrCodeInternal, "chunking ran before parsing", nil))
	}

	chunks := s.chunker.ChunkPages(run.DocumentID, run.Document.Pages)
	if len(chunks) == 0 {
		return failure(dserrors.New(dserrors.ErrCodeChunkingFailed,
			"document produced no chunks", nil))
	}

	totalTokens := 0
	for _, c := range chunks {
		totalTokens += c.TokenCount
	}

	run.Chunks = chunks
	return success(map[string]any{
		"chunks":       len(chunks),
		"total_tokens": totalTokens,
	})
}

// Rollback is a no-op: chunks live only in the run context until indexing.
func (s *ChunkingStage) Rollback(ctx context.Context, run *Context) error {
	return nil
}
