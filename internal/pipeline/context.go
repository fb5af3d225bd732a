// Package pipeline implements the staged ingestion pipeline: validation,
// parsing, chunking, embedding, indexing, and storage, sequenced by an
// orchestrator that rolls back completed stages when a later one fails.
package pipeline

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/docsift/docsift/internal/extract"
	"github.com/docsift/docsift/internal/scope"
	"github.com/docsift/docsift/internal/store"
)

// Context carries one ingestion run through the stages. Each stage reads the
// fields earlier stages populated and writes its own; a Context is never
// shared between runs.
type Context struct {
	// RunID uniquely identifies this ingestion attempt.
	RunID string

	// DocumentID is the stable document identity. Re-ingesting the same ID
	// replaces the prior version.
	DocumentID string

	// Filename is the original file name, for metadata only.
	Filename string

	// Data is the raw file bytes.
	Data []byte

	// ContentHash is the SHA-256 of Data, set by NewContext.
	ContentHash string

	// Scope resolves the target collection and storage prefix.
	Scope scope.Identifier

	// Warnings collects non-fatal findings (set by validation, appended to
	// by the orchestrator during rollback).
	Warnings []string

	// Document is the parsing output.
	Document *extract.Document

	// Chunks is the chunking output. Never mutated after creation.
	Chunks []*store.Chunk

	// Vectors holds one embedding per chunk, aligned by index.
	Vectors [][]float32

	// IndexedIDs are the chunk IDs inserted into the indexes, recorded so
	// indexing rollback knows exactly what to remove.
	IndexedIDs []string
}

// NewContext creates a run context for one document.
func NewContext(documentID, filename string, data []byte, sc scope.Identifier) *Context {
	sum := sha256.Sum256(data)
	return &Context{
		RunID:       uuid.NewString(),
		DocumentID:  documentID,
		Filename:    filename,
		Data:        data,
		ContentHash: hex.EncodeToString(sum[:]),
		Scope:       sc,
	}
}

// Collection resolves the target collection for this run.
func (c *Context) Collection() string {
	return c.Scope.Collection()
}

// StoragePrefix resolves the object-storage prefix for this run. Everything
// written during the run lives under it.
func (c *Context) StoragePrefix() string {
	return c.Scope.StoragePrefix(c.DocumentID)
}

// Warn records a non-fatal finding.
func (c *Context) Warn(msg string) {
	c.Warnings = append(c.Warnings, msg)
}
