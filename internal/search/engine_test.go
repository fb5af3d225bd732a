package search

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsift/docsift/internal/embed"
	dserrors "github.com/docsift/docsift/internal/errors"
	"github.com/docsift/docsift/internal/store"
)

const testCollection = "user_alice_chunks"

type searchEnv struct {
	engine   *Engine
	embedder embed.Embedder
	vectors  *store.HNSWIndex
	lexical  *store.BleveIndex
	objects  *store.FSObjectStore
}

func newSearchEnv(t *testing.T) *searchEnv {
	t.Helper()

	embedder := embed.NewStaticEmbedder()
	vectors, err := store.NewHNSWIndex(embedder.Dimensions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	lexical := store.NewBleveIndex("")
	t.Cleanup(func() { _ = lexical.Close() })

	objects, err := store.NewFSObjectStore(t.TempDir())
	require.NoError(t, err)

	return &searchEnv{
		engine:   NewEngine(embedder, vectors, lexical, objects, nil),
		embedder: embedder,
		vectors:  vectors,
		lexical:  lexical,
		objects:  objects,
	}
}

// indexChunk writes one chunk into both indexes and object storage, the same
// shape the ingestion pipeline produces.
func (e *searchEnv) indexChunk(t *testing.T, collection, documentID string, index int, text string) {
	t.Helper()
	ctx := context.Background()

	chunkID := fmt.Sprintf("%s_%04d", documentID, index)
	vec, err := e.embedder.Embed(ctx, text)
	require.NoError(t, err)

	_, err = e.vectors.Insert(ctx, collection, []*store.VectorRecord{
		{ID: chunkID, Vector: vec, Fields: map[string]string{"document_id": documentID}},
	})
	require.NoError(t, err)

	require.NoError(t, e.lexical.Index(ctx, collection, []*store.LexicalDoc{
		{ID: chunkID, Text: text},
	}))

	record, err := json.Marshal(store.Chunk{
		ID: chunkID, DocumentID: documentID, Index: index, Text: text, PageNumber: 1,
	})
	require.NoError(t, err)
	key := fmt.Sprintf("%s/documents/%s/chunks/%s.json", collection, documentID, chunkID)
	require.NoError(t, e.objects.Put(ctx, key, record, "application/json"))
}

func seedCorpus(t *testing.T, env *searchEnv) {
	env.indexChunk(t, testCollection, "doc1", 0, "quarterly revenue grew twelve percent year over year")
	env.indexChunk(t, testCollection, "doc1", 1, "operating expenses remained flat across all regions")
	env.indexChunk(t, testCollection, "doc2", 0, "the new office building opened in downtown portland")
}

func assertScoresValid(t *testing.T, results []*Result) {
	t.Helper()
	for i, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0, "result %d score below 0", i)
		assert.LessOrEqual(t, r.Score, 100.0, "result %d score above 100", i)
		assert.Equal(t, i+1, r.Rank)
		if i > 0 {
			assert.LessOrEqual(t, r.Score, results[i-1].Score,
				"scores must be non-increasing by rank")
		}
	}
}

func TestEngine_DenseSearch(t *testing.T) {
	env := newSearchEnv(t)
	seedCorpus(t, env)

	results, err := env.engine.Search(context.Background(), "revenue growth", Options{
		Mode:        ModeDense,
		Collections: []string{testCollection},
		TopK:        3,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assertScoresValid(t, results)
	assert.Equal(t, "doc1_0000", results[0].ChunkID)
	assert.Equal(t, "doc1", results[0].DocumentID)
	assert.True(t, results[0].FromSource(SourceDense))
}

func TestEngine_SparseSearchNormalizesBatch(t *testing.T) {
	env := newSearchEnv(t)
	seedCorpus(t, env)

	results, err := env.engine.Search(context.Background(), "revenue", Options{
		Mode:        ModeSparse,
		Collections: []string{testCollection},
		TopK:        5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assertScoresValid(t, results)
	// The best hit in the batch always normalizes to 100.
	assert.InDelta(t, 100.0, results[0].Score, 1e-9)
	assert.True(t, results[0].FromSource(SourceSparse))
}

func TestEngine_HybridSearch(t *testing.T) {
	env := newSearchEnv(t)
	seedCorpus(t, env)

	results, err := env.engine.Search(context.Background(), "quarterly revenue grew", Options{
		Mode:        ModeHybrid,
		Collections: []string{testCollection},
		TopK:        3,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assertScoresValid(t, results)

	// The obvious best match tops both lists and fuses to 100.
	assert.Equal(t, "doc1_0000", results[0].ChunkID)
	assert.InDelta(t, 100.0, results[0].Score, 1e-9)
	assert.True(t, results[0].FromSource(SourceDense))
	assert.True(t, results[0].FromSource(SourceSparse))

	// Text was enriched from object storage.
	assert.Contains(t, results[0].Text, "quarterly revenue")
	assert.Equal(t, 1, results[0].PageNumber)
}

func TestEngine_EmptyQueryFails(t *testing.T) {
	env := newSearchEnv(t)

	_, err := env.engine.Search(context.Background(), "   ", Options{
		Collections: []string{testCollection},
	})
	require.Error(t, err)
	assert.Equal(t, dserrors.ErrCodeInvalidInput, dserrors.CodeOf(err))

	_, err = env.engine.Search(context.Background(), "query", Options{})
	require.Error(t, err)
	assert.Equal(t, dserrors.ErrCodeInvalidInput, dserrors.CodeOf(err))
}

func TestEngine_UnknownModeFailsWholeQuery(t *testing.T) {
	env := newSearchEnv(t)
	seedCorpus(t, env)

	// A typo'd mode must surface as an error, not an empty result set.
	_, err := env.engine.Search(context.Background(), "quarterly revenue", Options{
		Mode:        Mode("fuzzy"),
		Collections: []string{testCollection},
	})
	require.Error(t, err)
	assert.Equal(t, dserrors.ErrCodeInvalidInput, dserrors.CodeOf(err))
}

func TestEngine_UnknownCollectionReturnsEmpty(t *testing.T) {
	env := newSearchEnv(t)

	results, err := env.engine.Search(context.Background(), "anything", Options{
		Mode:        ModeHybrid,
		Collections: []string{"user_nobody_chunks"},
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_MultiCollectionIsolation(t *testing.T) {
	env := newSearchEnv(t)
	seedCorpus(t, env)
	env.indexChunk(t, "user_bob_chunks", "doc9", 0, "quarterly revenue grew in the north region")

	results, err := env.engine.Search(context.Background(), "quarterly revenue", Options{
		Mode:        ModeHybrid,
		Collections: []string{testCollection, "user_bob_chunks", "user_missing_chunks"},
		TopK:        10,
	})
	require.NoError(t, err)
	assertScoresValid(t, results)

	collections := map[string]bool{}
	for _, r := range results {
		collections[r.Collection] = true
	}
	assert.True(t, collections[testCollection])
	assert.True(t, collections["user_bob_chunks"])
}

// queryFailEmbedder fails single-text embedding to simulate a provider
// outage at query time.
type queryFailEmbedder struct {
	embed.StaticEmbedder
}

func (f *queryFailEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, dserrors.New(dserrors.ErrCodeProviderUnavailable, "provider down", nil)
}

func TestEngine_QueryEmbeddingFailureFailsWholeQuery(t *testing.T) {
	env := newSearchEnv(t)
	seedCorpus(t, env)
	engine := NewEngine(&queryFailEmbedder{}, env.vectors, env.lexical, env.objects, nil)

	_, err := engine.Search(context.Background(), "revenue", Options{
		Mode:        ModeHybrid,
		Collections: []string{testCollection},
	})
	require.Error(t, err)
	assert.Equal(t, dserrors.ErrCodeEmbeddingFailed, dserrors.CodeOf(err))

	// Sparse mode needs no query embedding and still works.
	results, err := engine.Search(context.Background(), "revenue", Options{
		Mode:        ModeSparse,
		Collections: []string{testCollection},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}
