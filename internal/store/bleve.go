package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	dserrors "github.com/docsift/docsift/internal/errors"
)

// bleveDocument is the shape indexed for each chunk.
type bleveDocument struct {
	Text   string            `json:"text"`
	Fields map[string]string `json:"fields,omitempty"`
}

// BleveIndex implements LexicalIndex with one Bleve index per collection.
// When rooted at a directory, collection indexes persist under
// <dir>/<collection>.bleve; with an empty root they live in memory.
type BleveIndex struct {
	mu          sync.RWMutex
	dir         string
	collections map[string]bleve.Index
	closed      bool
}

// NewBleveIndex creates a lexical index rooted at dir. Pass an empty dir for
// a memory-only index (tests, ephemeral runs).
func NewBleveIndex(dir string) *BleveIndex {
	return &BleveIndex{
		dir:         dir,
		collections: make(map[string]bleve.Index),
	}
}

func buildIndexMapping() *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()

	doc := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	text.Store = false
	text.IncludeTermVectors = true
	doc.AddFieldMappingsAt("text", text)

	m.DefaultMapping = doc
	return m
}

// collectionIndex returns the bleve index for a collection, opening or
// creating it when create is true. Callers must hold at least a read lock;
// creation re-acquires the write lock.
func (b *BleveIndex) collectionIndex(collection string, create bool) (bleve.Index, error) {
	b.mu.RLock()
	idx, ok := b.collections[collection]
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return nil, dserrors.New(dserrors.ErrCodeInternal, "lexical index is closed", nil)
	}
	if ok {
		return idx, nil
	}
	if !create && b.dir == "" {
		return nil, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if idx, ok := b.collections[collection]; ok {
		return idx, nil
	}

	var (
		opened bleve.Index
		err    error
	)
	if b.dir == "" {
		if !create {
			return nil, nil
		}
		opened, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		path := filepath.Join(b.dir, collection+".bleve")
		opened, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			if !create {
				return nil, nil
			}
			opened, err = bleve.New(path, buildIndexMapping())
		}
	}
	if err != nil {
		return nil, dserrors.Wrap(dserrors.ErrCodeIndexInsert, fmt.Errorf("open lexical collection %q: %w", collection, err))
	}

	b.collections[collection] = opened
	return opened, nil
}

// Index adds documents to a collection as one batch.
func (b *BleveIndex) Index(ctx context.Context, collection string, docs []*LexicalDoc) error {
	if len(docs) == 0 {
		return nil
	}

	idx, err := b.collectionIndex(collection, true)
	if err != nil {
		return err
	}

	batch := idx.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, bleveDocument{Text: doc.Text, Fields: doc.Fields}); err != nil {
			return dserrors.Wrap(dserrors.ErrCodeIndexInsert, fmt.Errorf("batch document %q: %w", doc.ID, err))
		}
	}
	if err := idx.Batch(batch); err != nil {
		return dserrors.Wrap(dserrors.ErrCodeIndexInsert, fmt.Errorf("execute index batch: %w", err))
	}
	return nil
}

// Search returns documents matching the query text, scored by keyword
// relevance. Empty queries and unknown collections return empty results.
func (b *BleveIndex) Search(ctx context.Context, collection string, query string, topK int) ([]*LexicalResult, error) {
	if strings.TrimSpace(query) == "" {
		return []*LexicalResult{}, nil
	}

	idx, err := b.collectionIndex(collection, false)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		return []*LexicalResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("text")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = topK

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, dserrors.Wrap(dserrors.ErrCodeIndexSearch, fmt.Errorf("lexical search: %w", err))
	}

	results := make([]*LexicalResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, &LexicalResult{
			ID:    hit.ID,
			Score: hit.Score,
		})
	}
	return results, nil
}

// Delete removes documents by ID. An unknown collection is a no-op.
func (b *BleveIndex) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	idx, err := b.collectionIndex(collection, false)
	if err != nil {
		return err
	}
	if idx == nil {
		return nil
	}

	batch := idx.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := idx.Batch(batch); err != nil {
		return dserrors.Wrap(dserrors.ErrCodeIndexDelete, fmt.Errorf("execute delete batch: %w", err))
	}
	return nil
}

// Close closes every open collection index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var firstErr error
	for name, idx := range b.collections {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close lexical collection %q: %w", name, err)
		}
	}
	b.collections = nil
	return firstErr
}
