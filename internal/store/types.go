// Package store provides the persistence collaborators for docsift: the
// vector index (HNSW), the lexical index (Bleve), object storage, and the
// SQLite document registry. Core code depends only on the interfaces here so
// tests can substitute fakes.
package store

import (
	"context"
	"time"
)

// Chunk is a contiguous span of document text prepared for embedding.
// Chunks are immutable after creation.
type Chunk struct {
	// ID is deterministic: derived from (DocumentID, Index).
	ID string `json:"id"`

	// DocumentID is the parent document.
	DocumentID string `json:"document_id"`

	// Index is the chunk's monotonic position within the document.
	Index int `json:"index"`

	// Text is the chunk content.
	Text string `json:"text"`

	// TokenCount is the number of tokens in Text.
	TokenCount int `json:"token_count"`

	// CharCount is the number of bytes in Text.
	CharCount int `json:"char_count"`

	// PageNumber is the 1-based source page, 0 when unknown.
	PageNumber int `json:"page_number,omitempty"`

	// OverlapTokens is how many leading tokens repeat the previous chunk's
	// tail. Always 0 for the first chunk of a page when pages are preserved.
	OverlapTokens int `json:"overlap_tokens"`

	// CreatedAt is when the chunk was produced.
	CreatedAt time.Time `json:"created_at"`
}

// VectorRecord is one row inserted into the vector index.
type VectorRecord struct {
	ID     string
	Vector []float32
	Fields map[string]string
}

// VectorResult is a single vector search hit.
type VectorResult struct {
	ID       string
	Distance float32 // cosine distance, lower is more similar
	Fields   map[string]string
}

// InsertResult reports a batch insert.
type InsertResult struct {
	Inserted int
}

// VectorIndex provides nearest-neighbor search over embeddings, partitioned
// by collection. Implementations must be safe for concurrent use.
type VectorIndex interface {
	// Insert adds records to a collection as one batch, creating the
	// collection on first use. Existing IDs are replaced.
	Insert(ctx context.Context, collection string, records []*VectorRecord) (*InsertResult, error)

	// Search returns the topK nearest records by cosine distance.
	// An unknown collection returns an empty result, not an error.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]*VectorResult, error)

	// Delete removes records by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, collection string, ids []string) error

	// Count returns the number of records in a collection.
	Count(collection string) int

	// Close releases resources.
	Close() error
}

// LexicalDoc is one document indexed for keyword search.
type LexicalDoc struct {
	ID     string
	Text   string
	Fields map[string]string
}

// LexicalResult is a single keyword search hit with its raw relevance score.
type LexicalResult struct {
	ID     string
	Score  float64 // raw BM25-family score, not normalized
	Fields map[string]string
}

// LexicalIndex provides keyword-scored search over text, partitioned by
// collection. Implementations must be safe for concurrent use.
type LexicalIndex interface {
	// Index adds documents to a collection as one batch.
	Index(ctx context.Context, collection string, docs []*LexicalDoc) error

	// Search returns documents matching the raw query text, scored by
	// keyword relevance. An unknown collection returns an empty result.
	Search(ctx context.Context, collection string, query string, topK int) ([]*LexicalResult, error)

	// Delete removes documents by ID.
	Delete(ctx context.Context, collection string, ids []string) error

	// Close releases resources.
	Close() error
}

// ObjectStore persists immutable blobs under slash-separated paths.
type ObjectStore interface {
	// Put writes data at path, overwriting any existing object.
	Put(ctx context.Context, path string, data []byte, contentType string) error

	// Get reads the object at path.
	Get(ctx context.Context, path string) ([]byte, error)

	// DeletePrefix removes every object whose path starts with prefix.
	// Deleting a prefix with no objects is a no-op.
	DeletePrefix(ctx context.Context, prefix string) error
}

// DocumentStatus tracks a document's ingestion lifecycle in the registry.
type DocumentStatus string

const (
	DocumentStatusIngesting DocumentStatus = "ingesting"
	DocumentStatusComplete  DocumentStatus = "complete"
	DocumentStatusFailed    DocumentStatus = "failed"
)

// DocumentRecord is the registry row for one ingested document.
type DocumentRecord struct {
	ID          string
	Filename    string
	ContentHash string // SHA-256 of the original bytes
	Collection  string
	ChunkCount  int
	Status      DocumentStatus
	IngestedAt  time.Time
}

// DocumentRegistry persists document-level bookkeeping: duplicate detection
// by content hash and delete-then-insert re-ingestion.
type DocumentRegistry interface {
	// Save inserts or replaces a document record.
	Save(ctx context.Context, rec *DocumentRecord) error

	// Get returns the record for a document ID, or nil when absent.
	Get(ctx context.Context, id string) (*DocumentRecord, error)

	// FindByHash returns the completed record matching a content hash within
	// a collection, or nil when absent.
	FindByHash(ctx context.Context, collection, contentHash string) (*DocumentRecord, error)

	// Delete removes a document record.
	Delete(ctx context.Context, id string) error

	// List returns all records in a collection.
	List(ctx context.Context, collection string) ([]*DocumentRecord, error)

	// Close releases resources.
	Close() error
}
