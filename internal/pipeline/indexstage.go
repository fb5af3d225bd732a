package pipeline

import (
	"context"
	"fmt"
	"strconv"

	dserrors "github.com/docsift/docsift/internal/errors"
	"github.com/docsift/docsift/internal/store"
)

// IndexingStage inserts per-chunk records into the vector and lexical
// indexes under the run's resolved collection. On failure inside Execute it
// removes what it already wrote, so the orchestrator never rolls back a
// failed indexing stage.
type IndexingStage struct {
	vectors store.VectorIndex
	lexical store.LexicalIndex
}

// NewIndexingStage creates the indexing stage.
func NewIndexingStage(vectors store.VectorIndex, lexical store.LexicalIndex) *IndexingStage {
	return &IndexingStage{vectors: vectors, lexical: lexical}
}

func (s *IndexingStage) Name() string { return StageIndexing }

func (s *IndexingStage) Execute(ctx context.Context, run *Context) *StageResult {
	if len(run.Vectors) != len(run.Chunks) {
		return failure(dserrors.New(dserrors.ErrCodeInternal,
			fmt.Sprintf("have %d vectors for %d chunks", len(run.Vectors), len(run.Chunks)), nil))
	}

	collection := run.Collection()
	records := make([]*store.VectorRecord, len(run.Chunks))
	docs := make([]*store.LexicalDoc, len(run.Chunks))
	ids := make([]string, len(run.Chunks))

	for i, c := range run.Chunks {
		fields := map[string]string{
			"document_id": c.DocumentID,
			"filename":    run.Filename,
			"page":        strconv.Itoa(c.PageNumber),
			"index":       strconv.Itoa(c.Index),
		}
		records[i] = &store.VectorRecord{ID: c.ID, Vector: run.Vectors[i], Fields: fields}
		docs[i] = &store.LexicalDoc{ID: c.ID, Text: c.Text, Fields: fields}
		ids[i] = c.ID
	}

	if _, err := s.vectors.Insert(ctx, collection, records); err != nil {
		return failure(err)
	}
	if err := s.lexical.Index(ctx, collection, docs); err != nil {
		// Clean up the half-written state ourselves: vector rows are in,
		// lexical rows are not.
		if delErr := s.vectors.Delete(ctx, collection, ids); delErr != nil {
			run.Warn(fmt.Sprintf("cleanup after lexical index failure: %v", delErr))
		}
		return failure(err)
	}

	run.IndexedIDs = ids
	return success(map[string]any{
		"collection": collection,
		"inserted":   len(ids),
	})
}

// Rollback deletes every ID this run inserted from both indexes. It is a
// no-op when Execute never recorded inserts, and deleting already-absent IDs
// is itself a no-op, which keeps repeated rollback safe.
func (s *IndexingStage) Rollback(ctx context.Context, run *Context) error {
	if len(run.IndexedIDs) == 0 {
		return nil
	}
	collection := run.Collection()

	if err := s.vectors.Delete(ctx, collection, run.IndexedIDs); err != nil {
		return fmt.Errorf("rollback vector index: %w", err)
	}
	if err := s.lexical.Delete(ctx, collection, run.IndexedIDs); err != nil {
		return fmt.Errorf("rollback lexical index: %w", err)
	}
	run.IndexedIDs = nil
	return nil
}
