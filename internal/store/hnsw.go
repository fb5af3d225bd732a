package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/coder/hnsw"

	dserrors "github.com/docsift/docsift/internal/errors"
)

// HNSW tuning defaults, per coder/hnsw recommendations.
const (
	hnswDefaultM        = 16
	hnswDefaultEfSearch = 20
	hnswDefaultMl       = 0.25
)

// HNSWIndex implements VectorIndex using the pure Go coder/hnsw graph.
// Each collection gets its own graph so deletes and searches in one
// collection never touch another.
type HNSWIndex struct {
	mu          sync.RWMutex
	dimensions  int
	collections map[string]*hnswCollection
	closed      bool
}

// hnswCollection is the per-collection graph plus ID bookkeeping. The graph
// keys are internal uint64s; idMap/keyMap translate to and from chunk IDs.
type hnswCollection struct {
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	fields  map[string]map[string]string
	nextKey uint64
}

// hnswCollectionMeta is the gob-persisted bookkeeping for one collection.
type hnswCollectionMeta struct {
	IDMap   map[string]uint64
	Fields  map[string]map[string]string
	NextKey uint64
}

// NewHNSWIndex creates an empty vector index for embeddings of the given
// dimension.
func NewHNSWIndex(dimensions int) (*HNSWIndex, error) {
	if dimensions <= 0 {
		return nil, dserrors.ValidationError(dserrors.ErrCodeInvalidInput, fmt.Sprintf("invalid embedding dimensions: %d", dimensions))
	}
	return &HNSWIndex{
		dimensions:  dimensions,
		collections: make(map[string]*hnswCollection),
	}, nil
}

func newHNSWCollection() *hnswCollection {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = hnswDefaultM
	graph.EfSearch = hnswDefaultEfSearch
	graph.Ml = hnswDefaultMl

	return &hnswCollection{
		graph:  graph,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		fields: make(map[string]map[string]string),
	}
}

// Insert adds records to a collection, creating it on first use.
// Existing IDs are replaced via lazy deletion.
func (s *HNSWIndex) Insert(ctx context.Context, collection string, records []*VectorRecord) (*InsertResult, error) {
	if len(records) == 0 {
		return &InsertResult{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, dserrors.New(dserrors.ErrCodeIndexInsert, "vector index is closed", nil)
	}

	for _, rec := range records {
		if len(rec.Vector) != s.dimensions {
			return nil, dserrors.New(dserrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("vector dimension mismatch for %q: expected %d, got %d", rec.ID, s.dimensions, len(rec.Vector)), nil)
		}
	}

	col, ok := s.collections[collection]
	if !ok {
		col = newHNSWCollection()
		s.collections[collection] = col
	}

	for _, rec := range records {
		// Lazy deletion on replace: orphan the old key rather than calling
		// graph.Delete, which can break the graph when removing the last node.
		if oldKey, exists := col.idMap[rec.ID]; exists {
			delete(col.keyMap, oldKey)
			delete(col.idMap, rec.ID)
			delete(col.fields, rec.ID)
		}

		key := col.nextKey
		col.nextKey++

		vec := make([]float32, len(rec.Vector))
		copy(vec, rec.Vector)
		normalizeInPlace(vec)

		col.graph.Add(hnsw.MakeNode(key, vec))
		col.idMap[rec.ID] = key
		col.keyMap[key] = rec.ID
		if rec.Fields != nil {
			col.fields[rec.ID] = rec.Fields
		}
	}

	return &InsertResult{Inserted: len(records)}, nil
}

// Search returns the topK nearest records by cosine distance. An unknown
// collection returns an empty slice.
func (s *HNSWIndex) Search(ctx context.Context, collection string, vector []float32, topK int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, dserrors.New(dserrors.ErrCodeIndexSearch, "vector index is closed", nil)
	}

	if len(vector) != s.dimensions {
		return nil, dserrors.New(dserrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("query dimension mismatch: expected %d, got %d", s.dimensions, len(vector)), nil)
	}

	col, ok := s.collections[collection]
	if !ok || col.graph.Len() == 0 {
		return []*VectorResult{}, nil
	}

	query := make([]float32, len(vector))
	copy(query, vector)
	normalizeInPlace(query)

	// Overfetch to compensate for lazily deleted nodes still in the graph.
	orphans := col.graph.Len() - len(col.idMap)
	nodes := col.graph.Search(query, topK+orphans)

	results := make([]*VectorResult, 0, topK)
	for _, node := range nodes {
		id, live := col.keyMap[node.Key]
		if !live {
			continue // lazily deleted
		}
		results = append(results, &VectorResult{
			ID:       id,
			Distance: col.graph.Distance(query, node.Value),
			Fields:   col.fields[id],
		})
		if len(results) == topK {
			break
		}
	}

	return results, nil
}

// Delete removes records by ID using lazy deletion. Unknown IDs are ignored.
func (s *HNSWIndex) Delete(ctx context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return dserrors.New(dserrors.ErrCodeIndexDelete, "vector index is closed", nil)
	}

	col, ok := s.collections[collection]
	if !ok {
		return nil
	}

	for _, id := range ids {
		if key, exists := col.idMap[id]; exists {
			delete(col.keyMap, key)
			delete(col.idMap, id)
			delete(col.fields, id)
		}
	}

	return nil
}

// Count returns the number of live records in a collection.
func (s *HNSWIndex) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	col, ok := s.collections[collection]
	if !ok {
		return 0
	}
	return len(col.idMap)
}

// Collections returns the names of all collections with at least one record.
func (s *HNSWIndex) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name, col := range s.collections {
		if len(col.idMap) > 0 {
			names = append(names, name)
		}
	}
	return names
}

// Save persists every collection under dir as <collection>.hnsw plus a
// .meta sidecar with the ID mappings. Writes go through a temp file and
// rename so a crash never leaves a torn index.
func (s *HNSWIndex) Save(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return dserrors.New(dserrors.ErrCodeInternal, "vector index is closed", nil)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return dserrors.Wrap(dserrors.ErrCodeStorageWrite, fmt.Errorf("create vector index directory: %w", err))
	}

	for name, col := range s.collections {
		path := filepath.Join(dir, name+".hnsw")
		if err := saveGraph(path, col); err != nil {
			return dserrors.Wrap(dserrors.ErrCodeStorageWrite, fmt.Errorf("save vector collection %q: %w", name, err))
		}
	}
	return nil
}

func saveGraph(path string, col *hnswCollection) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := col.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}

	metaTmp := path + ".meta.tmp"
	metaFile, err := os.Create(metaTmp)
	if err != nil {
		return err
	}
	meta := hnswCollectionMeta{IDMap: col.idMap, Fields: col.fields, NextKey: col.nextKey}
	if err := gob.NewEncoder(metaFile).Encode(meta); err != nil {
		metaFile.Close()
		os.Remove(metaTmp)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := metaFile.Close(); err != nil {
		os.Remove(metaTmp)
		return err
	}
	return os.Rename(metaTmp, path+".meta")
}

// Load restores all collections previously saved under dir. A missing
// directory is treated as an empty index.
func (s *HNSWIndex) Load(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return dserrors.New(dserrors.ErrCodeInternal, "vector index is closed", nil)
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return dserrors.Wrap(dserrors.ErrCodeStorageRead, fmt.Errorf("read vector index directory: %w", err))
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".hnsw") {
			continue
		}
		collection := strings.TrimSuffix(name, ".hnsw")
		col, err := loadGraph(filepath.Join(dir, name))
		if err != nil {
			return dserrors.Wrap(dserrors.ErrCodeStorageRead, fmt.Errorf("load vector collection %q: %w", collection, err))
		}
		s.collections[collection] = col
	}
	return nil
}

func loadGraph(path string) (*hnswCollection, error) {
	col := newHNSWCollection()

	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return nil, err
	}
	var meta hnswCollectionMeta
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		metaFile.Close()
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	metaFile.Close()

	col.idMap = meta.IDMap
	col.fields = meta.Fields
	col.nextKey = meta.NextKey
	if col.fields == nil {
		col.fields = make(map[string]map[string]string)
	}
	for id, key := range col.idMap {
		col.keyMap[key] = id
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader.
	if err := col.graph.Import(bufio.NewReader(file)); err != nil {
		return nil, fmt.Errorf("import graph: %w", err)
	}
	return col, nil
}

// Close releases the in-memory graphs.
func (s *HNSWIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.collections = nil
	return nil
}

func normalizeInPlace(vec []float32) {
	var sum float32
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range vec {
		vec[i] *= norm
	}
}
