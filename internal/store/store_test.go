package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/docsift/docsift/internal/errors"
)

func testVector(dims int, hot int) []float32 {
	vec := make([]float32, dims)
	vec[hot%dims] = 1.0
	return vec
}

func TestHNSWIndex_InsertAndSearch(t *testing.T) {
	idx, err := NewHNSWIndex(8)
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	records := []*VectorRecord{
		{ID: "doc1_0000", Vector: testVector(8, 0)},
		{ID: "doc1_0001", Vector: testVector(8, 1)},
		{ID: "doc1_0002", Vector: testVector(8, 2)},
	}
	res, err := idx.Insert(ctx, "user_alice_chunks", records)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Inserted)
	assert.Equal(t, 3, idx.Count("user_alice_chunks"))

	hits, err := idx.Search(ctx, "user_alice_chunks", testVector(8, 1), 2)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "doc1_0001", hits[0].ID)
	assert.InDelta(t, 0.0, float64(hits[0].Distance), 1e-5)
}

func TestHNSWIndex_UnknownCollectionIsEmpty(t *testing.T) {
	idx, err := NewHNSWIndex(8)
	require.NoError(t, err)
	defer idx.Close()

	hits, err := idx.Search(context.Background(), "user_nobody_chunks", testVector(8, 0), 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, 0, idx.Count("user_nobody_chunks"))
}

func TestHNSWIndex_CollectionsAreIsolated(t *testing.T) {
	idx, err := NewHNSWIndex(8)
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	_, err = idx.Insert(ctx, "user_alice_chunks", []*VectorRecord{
		{ID: "a_0000", Vector: testVector(8, 0)},
	})
	require.NoError(t, err)
	_, err = idx.Insert(ctx, "user_bob_chunks", []*VectorRecord{
		{ID: "b_0000", Vector: testVector(8, 0)},
	})
	require.NoError(t, err)

	hits, err := idx.Search(ctx, "user_alice_chunks", testVector(8, 0), 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a_0000", hits[0].ID)
}

func TestHNSWIndex_DeleteHidesRecords(t *testing.T) {
	idx, err := NewHNSWIndex(8)
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	_, err = idx.Insert(ctx, "c", []*VectorRecord{
		{ID: "x_0000", Vector: testVector(8, 0)},
		{ID: "x_0001", Vector: testVector(8, 1)},
	})
	require.NoError(t, err)

	require.NoError(t, idx.Delete(ctx, "c", []string{"x_0000"}))
	assert.Equal(t, 1, idx.Count("c"))

	hits, err := idx.Search(ctx, "c", testVector(8, 0), 10)
	require.NoError(t, err)
	for _, hit := range hits {
		assert.NotEqual(t, "x_0000", hit.ID)
	}

	// Deleting again is a no-op.
	require.NoError(t, idx.Delete(ctx, "c", []string{"x_0000", "missing"}))
	assert.Equal(t, 1, idx.Count("c"))
}

func TestHNSWIndex_DimensionMismatch(t *testing.T) {
	idx, err := NewHNSWIndex(8)
	require.NoError(t, err)
	defer idx.Close()

	_, err = idx.Insert(context.Background(), "c", []*VectorRecord{
		{ID: "bad", Vector: testVector(4, 0)},
	})
	require.Error(t, err)
	assert.Equal(t, dserrors.ErrCodeDimensionMismatch, dserrors.CodeOf(err))
}

func TestHNSWIndex_SaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := NewHNSWIndex(8)
	require.NoError(t, err)
	_, err = idx.Insert(ctx, "user_alice_chunks", []*VectorRecord{
		{ID: "d_0000", Vector: testVector(8, 3), Fields: map[string]string{"document_id": "d"}},
		{ID: "d_0001", Vector: testVector(8, 5)},
	})
	require.NoError(t, err)
	require.NoError(t, idx.Save(dir))
	require.NoError(t, idx.Close())

	loaded, err := NewHNSWIndex(8)
	require.NoError(t, err)
	defer loaded.Close()
	require.NoError(t, loaded.Load(dir))

	assert.Equal(t, 2, loaded.Count("user_alice_chunks"))
	hits, err := loaded.Search(ctx, "user_alice_chunks", testVector(8, 3), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "d_0000", hits[0].ID)
	assert.Equal(t, "d", hits[0].Fields["document_id"])
}

func TestBleveIndex_IndexAndSearch(t *testing.T) {
	idx := NewBleveIndex("")
	defer idx.Close()

	ctx := context.Background()
	err := idx.Index(ctx, "user_alice_chunks", []*LexicalDoc{
		{ID: "d_0000", Text: "quarterly revenue grew twelve percent"},
		{ID: "d_0001", Text: "the office moved to a new building"},
	})
	require.NoError(t, err)

	hits, err := idx.Search(ctx, "user_alice_chunks", "revenue growth", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "d_0000", hits[0].ID)
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestBleveIndex_EmptyQueryAndUnknownCollection(t *testing.T) {
	idx := NewBleveIndex("")
	defer idx.Close()

	ctx := context.Background()
	hits, err := idx.Search(ctx, "user_alice_chunks", "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(ctx, "user_nobody_chunks", "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBleveIndex_Delete(t *testing.T) {
	idx := NewBleveIndex("")
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, "c", []*LexicalDoc{
		{ID: "d_0000", Text: "alpha beta gamma"},
	}))
	require.NoError(t, idx.Delete(ctx, "c", []string{"d_0000"}))

	hits, err := idx.Search(ctx, "c", "alpha", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Unknown collection delete is a no-op.
	require.NoError(t, idx.Delete(ctx, "missing", []string{"x"}))
}

func TestFSObjectStore_PutGetDelete(t *testing.T) {
	s, err := NewFSObjectStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	path := "user_alice_chunks/documents/doc1/original.pdf"
	require.NoError(t, s.Put(ctx, path, []byte("pdf bytes"), "application/pdf"))

	data, err := s.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf bytes"), data)

	require.NoError(t, s.DeletePrefix(ctx, "user_alice_chunks/documents/doc1"))
	_, err = s.Get(ctx, path)
	require.Error(t, err)
	assert.Equal(t, dserrors.ErrCodeStorageRead, dserrors.CodeOf(err))
}

func TestFSObjectStore_DeleteMissingPrefixIsNoop(t *testing.T) {
	s, err := NewFSObjectStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, s.DeletePrefix(context.Background(), "never/written"))
}

func TestFSObjectStore_RejectsEscapingPaths(t *testing.T) {
	s, err := NewFSObjectStore(t.TempDir())
	require.NoError(t, err)

	err = s.Put(context.Background(), "../outside", []byte("x"), "")
	require.Error(t, err)
	assert.Equal(t, dserrors.ErrCodeInvalidInput, dserrors.CodeOf(err))
}

func TestSQLiteRegistry_SaveGetDelete(t *testing.T) {
	reg, err := NewSQLiteRegistry(":memory:")
	require.NoError(t, err)
	defer reg.Close()

	ctx := context.Background()
	rec := &DocumentRecord{
		ID:          "doc1",
		Filename:    "report.pdf",
		ContentHash: "abc123",
		Collection:  "user_alice_chunks",
		ChunkCount:  12,
		Status:      DocumentStatusComplete,
		IngestedAt:  time.Now(),
	}
	require.NoError(t, reg.Save(ctx, rec))

	got, err := reg.Get(ctx, "doc1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "report.pdf", got.Filename)
	assert.Equal(t, 12, got.ChunkCount)
	assert.Equal(t, DocumentStatusComplete, got.Status)

	require.NoError(t, reg.Delete(ctx, "doc1"))
	got, err = reg.Get(ctx, "doc1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteRegistry_FindByHash(t *testing.T) {
	reg, err := NewSQLiteRegistry(":memory:")
	require.NoError(t, err)
	defer reg.Close()

	ctx := context.Background()
	require.NoError(t, reg.Save(ctx, &DocumentRecord{
		ID: "doc1", Filename: "a.pdf", ContentHash: "h1",
		Collection: "user_alice_chunks", Status: DocumentStatusComplete, IngestedAt: time.Now(),
	}))
	require.NoError(t, reg.Save(ctx, &DocumentRecord{
		ID: "doc2", Filename: "b.pdf", ContentHash: "h2",
		Collection: "user_alice_chunks", Status: DocumentStatusFailed, IngestedAt: time.Now(),
	}))

	// Same hash, different collection: not a duplicate.
	got, err := reg.FindByHash(ctx, "user_bob_chunks", "h1")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = reg.FindByHash(ctx, "user_alice_chunks", "h1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "doc1", got.ID)

	// Failed ingests never count as duplicates.
	got, err = reg.FindByHash(ctx, "user_alice_chunks", "h2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteRegistry_SaveReplacesExisting(t *testing.T) {
	reg, err := NewSQLiteRegistry(":memory:")
	require.NoError(t, err)
	defer reg.Close()

	ctx := context.Background()
	rec := &DocumentRecord{
		ID: "doc1", Filename: "a.pdf", ContentHash: "h1",
		Collection: "user_alice_chunks", Status: DocumentStatusIngesting, IngestedAt: time.Now(),
	}
	require.NoError(t, reg.Save(ctx, rec))

	rec.Status = DocumentStatusComplete
	rec.ChunkCount = 7
	require.NoError(t, reg.Save(ctx, rec))

	got, err := reg.Get(ctx, "doc1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, DocumentStatusComplete, got.Status)
	assert.Equal(t, 7, got.ChunkCount)
}

func TestSQLiteRegistry_List(t *testing.T) {
	reg, err := NewSQLiteRegistry(":memory:")
	require.NoError(t, err)
	defer reg.Close()

	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, reg.Save(ctx, &DocumentRecord{
			ID:          fmt.Sprintf("doc%d", i),
			Filename:    fmt.Sprintf("f%d.pdf", i),
			ContentHash: fmt.Sprintf("h%d", i),
			Collection:  "user_alice_chunks",
			Status:      DocumentStatusComplete,
			IngestedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	records, err := reg.List(ctx, "user_alice_chunks")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "doc2", records[0].ID) // newest first

	records, err = reg.List(ctx, "user_bob_chunks")
	require.NoError(t, err)
	assert.Empty(t, records)
}
