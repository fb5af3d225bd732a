package pipeline

import (
	"github.com/docsift/docsift/internal/chunk"
	"github.com/docsift/docsift/internal/config"
	"github.com/docsift/docsift/internal/embed"
	"github.com/docsift/docsift/internal/extract"
	"github.com/docsift/docsift/internal/store"
)

// DefaultStages builds the standard six-stage sequence from configuration
// and the collaborator set.
func DefaultStages(cfg *config.Config, extractor extract.Extractor, embedder embed.Embedder,
	vectors store.VectorIndex, lexical store.LexicalIndex, objects store.ObjectStore) []Stage {
	chunker := chunk.NewChunker(chunk.Config{
		MaxTokens:     cfg.Chunking.MaxTokens,
		OverlapTokens: cfg.Chunking.OverlapTokens,
		PreservePages: cfg.Chunking.PreservePages,
	})

	return []Stage{
		NewValidationStage(cfg.Pipeline.MaxFileSizeMB),
		NewParsingStage(extractor, cfg.Pipeline.MinTextChars),
		NewChunkingStage(chunker),
		NewEmbeddingStage(embedder, cfg.Embeddings.BatchSize, cfg.Pipeline.EmbedWorkers, cfg.Pipeline.StageTimeout),
		NewIndexingStage(vectors, lexical),
		NewStorageStage(objects),
	}
}
