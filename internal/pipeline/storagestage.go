package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	dserrors "github.com/docsift/docsift/internal/errors"
	"github.com/docsift/docsift/internal/store"
)

// StorageStage persists the original document and one JSON record per chunk
// under the run's scope-qualified storage prefix.
type StorageStage struct {
	objects store.ObjectStore
}

// NewStorageStage creates the storage stage.
func NewStorageStage(objects store.ObjectStore) *StorageStage {
	return &StorageStage{objects: objects}
}

func (s *StorageStage) Name() string { return StageStorage }

func (s *StorageStage) Execute(ctx context.Context, run *Context) *StageResult {
	prefix := run.StoragePrefix()

	if err := s.objects.Put(ctx, path.Join(prefix, "original.pdf"), run.Data, "application/pdf"); err != nil {
		return s.failPartial(ctx, prefix, err)
	}

	for _, c := range run.Chunks {
		data, err := json.Marshal(c)
		if err != nil {
			return s.failPartial(ctx, prefix, dserrors.New(dserrors.ErrCodeInternal,
				fmt.Sprintf("marshal chunk %q: %v", c.ID, err), err))
		}
		key := path.Join(prefix, "chunks", c.ID+".json")
		if err := s.objects.Put(ctx, key, data, "application/json"); err != nil {
			return s.failPartial(ctx, prefix, err)
		}
	}

	return success(map[string]any{
		"prefix":  prefix,
		"objects": len(run.Chunks) + 1,
	})
}

// failPartial removes whatever this Execute already wrote before reporting
// failure. The orchestrator only rolls back completed stages, so a failing
// stage must clean up after itself. Deletion is best-effort: the original
// error is what the caller needs to see.
func (s *StorageStage) failPartial(ctx context.Context, prefix string, err error) *StageResult {
	_ = s.objects.DeletePrefix(ctx, prefix)
	return failure(err)
}

// Rollback deletes everything written under the run's prefix. DeletePrefix
// on an empty prefix is a no-op, so rollback is safe whether Execute wrote
// nothing, some objects, or all of them.
func (s *StorageStage) Rollback(ctx context.Context, run *Context) error {
	return s.objects.DeletePrefix(ctx, run.StoragePrefix())
}
