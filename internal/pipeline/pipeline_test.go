package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsift/docsift/internal/chunk"
	"github.com/docsift/docsift/internal/embed"
	dserrors "github.com/docsift/docsift/internal/errors"
	"github.com/docsift/docsift/internal/extract"
	"github.com/docsift/docsift/internal/scope"
	"github.com/docsift/docsift/internal/store"
)

// fakeExtractor returns canned pages regardless of input bytes, so tests do
// not need real PDF fixtures.
type fakeExtractor struct {
	pages []extract.Page
	err   error
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte) (*extract.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &extract.Document{Pages: f.pages, Metadata: extract.Metadata{PageCount: len(f.pages)}}, nil
}

// failEmbedder always returns the configured error.
type failEmbedder struct {
	embed.StaticEmbedder
	err error
}

func (f *failEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, f.err
}

// failPutStore wraps an ObjectStore and fails Put after allowing a number of
// writes, to force a late-stage failure.
type failPutStore struct {
	store.ObjectStore
	allowed int
	puts    int
}

func (f *failPutStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	f.puts++
	if f.puts > f.allowed {
		return dserrors.New(dserrors.ErrCodeStorageWrite, "disk full", nil)
	}
	return f.ObjectStore.Put(ctx, path, data, contentType)
}

type testEnv struct {
	vectors  *store.HNSWIndex
	lexical  *store.BleveIndex
	objects  store.ObjectStore
	registry *store.SQLiteRegistry
	embedder embed.Embedder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	embedder := embed.NewStaticEmbedder()
	vectors, err := store.NewHNSWIndex(embedder.Dimensions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	lexical := store.NewBleveIndex("")
	t.Cleanup(func() { _ = lexical.Close() })

	objects, err := store.NewFSObjectStore(t.TempDir())
	require.NoError(t, err)

	registry, err := store.NewSQLiteRegistry(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Close() })

	return &testEnv{
		vectors:  vectors,
		lexical:  lexical,
		objects:  objects,
		registry: registry,
		embedder: embedder,
	}
}

func (e *testEnv) orchestrator(extractor extract.Extractor, embedder embed.Embedder, objects store.ObjectStore) *Orchestrator {
	chunker := chunk.NewChunker(chunk.Config{MaxTokens: 50, OverlapTokens: 5, PreservePages: true})
	stages := []Stage{
		NewValidationStage(50),
		NewParsingStage(extractor, 10),
		NewChunkingStage(chunker),
		NewEmbeddingStage(embedder, 8, 2, time.Second),
		NewIndexingStage(e.vectors, e.lexical),
		NewStorageStage(objects),
	}
	return NewOrchestrator(stages, e.registry, e.vectors, e.lexical, objects, nil)
}

func pdfBytes(marker string) []byte {
	return []byte("%PDF-1.7 /Font Tj " + marker)
}

func testPages() []extract.Page {
	return []extract.Page{
		{Number: 1, Text: strings.Repeat("revenue grew strongly this quarter ", 20)},
		{Number: 2, Text: strings.Repeat("expansion plans for the new office ", 20)},
	}
}

func TestOrchestrator_CleanIngest(t *testing.T) {
	env := newTestEnv(t)
	orch := env.orchestrator(&fakeExtractor{pages: testPages()}, env.embedder, env.objects)

	sc := scope.New("alice", scope.VisibilityPrivate)
	run := NewContext("doc1", "report.pdf", pdfBytes("v1"), sc)

	result := orch.Process(context.Background(), run)
	require.Nil(t, result.Err)
	assert.True(t, result.Success)
	assert.False(t, result.Duplicate)
	assert.Greater(t, result.ChunkCount, 0)
	assert.Len(t, result.Stages, 6)

	// Every stage ran in order.
	names := make([]string, 0, len(result.Stages))
	for _, st := range result.Stages {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{StageValidation, StageParsing, StageChunking,
		StageEmbedding, StageIndexing, StageStorage}, names)

	// Chunk rows exist in both indexes and the registry is complete.
	assert.Equal(t, result.ChunkCount, env.vectors.Count(sc.Collection()))
	rec, err := env.registry.Get(context.Background(), "doc1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, store.DocumentStatusComplete, rec.Status)
	assert.Equal(t, result.ChunkCount, rec.ChunkCount)

	// The original document was stored under the scope-qualified prefix.
	data, err := env.objects.Get(context.Background(), sc.StoragePrefix("doc1")+"/original.pdf")
	require.NoError(t, err)
	assert.Equal(t, pdfBytes("v1"), data)
}

func TestOrchestrator_ValidationRejects(t *testing.T) {
	env := newTestEnv(t)
	orch := env.orchestrator(&fakeExtractor{pages: testPages()}, env.embedder, env.objects)
	sc := scope.New("alice", scope.VisibilityPrivate)

	tests := []struct {
		name     string
		data     []byte
		wantCode string
	}{
		{"not a pdf", []byte("plain text"), dserrors.ErrCodeUnsupportedType},
		{"empty", nil, dserrors.ErrCodeEmptyDocument},
		{"encrypted", []byte("%PDF-1.7 /Encrypt 4 0 R"), dserrors.ErrCodeFileEncrypted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := NewContext("doc-"+tt.name, tt.name, tt.data, sc)
			result := orch.Process(context.Background(), run)
			assert.False(t, result.Success)
			assert.Equal(t, StageValidation, result.OriginatingStage)
			assert.Equal(t, tt.wantCode, dserrors.CodeOf(result.Err))
		})
	}
}

func TestOrchestrator_EmbeddingOutage(t *testing.T) {
	env := newTestEnv(t)
	providerErr := dserrors.New(dserrors.ErrCodeProviderAuth, "invalid api key", nil)
	orch := env.orchestrator(&fakeExtractor{pages: testPages()}, &failEmbedder{err: providerErr}, env.objects)

	sc := scope.New("alice", scope.VisibilityPrivate)
	run := NewContext("doc1", "report.pdf", pdfBytes("v1"), sc)

	result := orch.Process(context.Background(), run)
	assert.False(t, result.Success)
	assert.Equal(t, StageEmbedding, result.OriginatingStage)
	assert.Equal(t, dserrors.ErrCodeProviderAuth, dserrors.CodeOf(result.Err))

	// Indexing and storage never ran: no external state anywhere.
	assert.Equal(t, 0, env.vectors.Count(sc.Collection()))
	_, err := env.objects.Get(context.Background(), sc.StoragePrefix("doc1")+"/original.pdf")
	assert.Error(t, err)

	rec, err := env.registry.Get(context.Background(), "doc1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, store.DocumentStatusFailed, rec.Status)
}

func TestOrchestrator_LateFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	// Storage fails on the very first write, after indexing succeeded.
	failing := &failPutStore{ObjectStore: env.objects, allowed: 0}
	orch := env.orchestrator(&fakeExtractor{pages: testPages()}, env.embedder, failing)

	sc := scope.New("alice", scope.VisibilityPrivate)
	run := NewContext("doc1", "report.pdf", pdfBytes("v1"), sc)

	result := orch.Process(context.Background(), run)
	assert.False(t, result.Success)
	assert.Equal(t, StageStorage, result.OriginatingStage)

	// Rollback removed every indexed row for the document.
	assert.Equal(t, 0, env.vectors.Count(sc.Collection()))
	hits, err := env.lexical.Search(context.Background(), sc.Collection(), "revenue", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestOrchestrator_PartialStorageFailureLeavesNoObjects(t *testing.T) {
	env := newTestEnv(t)
	// original.pdf lands, then the first chunk record fails. The stage never
	// completes, so the orchestrator's rollback does not cover it; the stage
	// has to remove its own partial writes.
	failing := &failPutStore{ObjectStore: env.objects, allowed: 1}
	orch := env.orchestrator(&fakeExtractor{pages: testPages()}, env.embedder, failing)

	sc := scope.New("alice", scope.VisibilityPrivate)
	run := NewContext("doc1", "report.pdf", pdfBytes("v1"), sc)

	result := orch.Process(context.Background(), run)
	assert.False(t, result.Success)
	assert.Equal(t, StageStorage, result.OriginatingStage)

	_, err := env.objects.Get(context.Background(), sc.StoragePrefix("doc1")+"/original.pdf")
	assert.Error(t, err)
	assert.Equal(t, 0, env.vectors.Count(sc.Collection()))
}

func TestIndexingStage_RollbackIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	stage := NewIndexingStage(env.vectors, env.lexical)

	sc := scope.New("alice", scope.VisibilityPrivate)
	run := NewContext("doc1", "report.pdf", pdfBytes("v1"), sc)

	// Rollback before Execute is a no-op.
	require.NoError(t, stage.Rollback(context.Background(), run))

	run.Chunks = []*store.Chunk{
		{ID: chunk.ChunkID("doc1", 0), DocumentID: "doc1", Text: "alpha beta"},
	}
	run.Vectors = make([][]float32, 1)
	vec, err := env.embedder.Embed(context.Background(), "alpha beta")
	require.NoError(t, err)
	run.Vectors[0] = vec

	sr := stage.Execute(context.Background(), run)
	require.True(t, sr.Success)
	assert.Equal(t, 1, env.vectors.Count(sc.Collection()))

	require.NoError(t, stage.Rollback(context.Background(), run))
	assert.Equal(t, 0, env.vectors.Count(sc.Collection()))

	// Second rollback finds nothing to undo and still succeeds.
	require.NoError(t, stage.Rollback(context.Background(), run))
}

func TestOrchestrator_DuplicateShortCircuits(t *testing.T) {
	env := newTestEnv(t)
	orch := env.orchestrator(&fakeExtractor{pages: testPages()}, env.embedder, env.objects)
	sc := scope.New("alice", scope.VisibilityPrivate)

	first := orch.Process(context.Background(), NewContext("doc1", "report.pdf", pdfBytes("v1"), sc))
	require.True(t, first.Success)

	// Same bytes, different document ID, same scope: duplicate.
	second := orch.Process(context.Background(), NewContext("doc2", "copy.pdf", pdfBytes("v1"), sc))
	require.Nil(t, second.Err)
	assert.True(t, second.Success)
	assert.True(t, second.Duplicate)

	// Nothing was written for doc2.
	rec, err := env.registry.Get(context.Background(), "doc2")
	require.NoError(t, err)
	assert.Nil(t, rec)

	// Same bytes in a different owner's scope is not a duplicate.
	other := scope.New("bob", scope.VisibilityPrivate)
	third := orch.Process(context.Background(), NewContext("doc3", "report.pdf", pdfBytes("v1"), other))
	require.Nil(t, third.Err)
	assert.False(t, third.Duplicate)
}

func TestOrchestrator_ReingestReplaces(t *testing.T) {
	env := newTestEnv(t)
	orch := env.orchestrator(&fakeExtractor{pages: testPages()}, env.embedder, env.objects)
	sc := scope.New("alice", scope.VisibilityPrivate)

	first := orch.Process(context.Background(), NewContext("doc1", "report.pdf", pdfBytes("v1"), sc))
	require.True(t, first.Success)
	firstCount := env.vectors.Count(sc.Collection())

	// Same document ID with new content replaces the old version.
	second := orch.Process(context.Background(), NewContext("doc1", "report.pdf", pdfBytes("v2"), sc))
	require.Nil(t, second.Err)
	assert.True(t, second.Success)
	assert.False(t, second.Duplicate)

	assert.Equal(t, firstCount, env.vectors.Count(sc.Collection()))

	rec, err := env.registry.Get(context.Background(), "doc1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, store.DocumentStatusComplete, rec.Status)
}

func TestParsingStage_EmptyDocumentIsFatal(t *testing.T) {
	stage := NewParsingStage(&fakeExtractor{pages: nil}, 10)
	sc := scope.New("alice", scope.VisibilityPrivate)
	run := NewContext("doc1", "empty.pdf", pdfBytes("v1"), sc)

	sr := stage.Execute(context.Background(), run)
	assert.False(t, sr.Success)
	assert.Equal(t, dserrors.ErrCodeEmptyDocument, dserrors.CodeOf(sr.Err))
}
