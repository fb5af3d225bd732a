package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	dserrors "github.com/docsift/docsift/internal/errors"
)

// SQLiteRegistry implements DocumentRegistry on an embedded SQLite database.
// It is the source of truth for duplicate detection and re-ingestion.
type SQLiteRegistry struct {
	db *sql.DB
}

const registrySchema = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	filename     TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	collection   TEXT NOT NULL,
	chunk_count  INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL,
	ingested_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(collection, content_hash);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
`

// NewSQLiteRegistry opens (or creates) the registry database at path.
// Use ":memory:" for an ephemeral registry in tests.
func NewSQLiteRegistry(path string) (*SQLiteRegistry, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, dserrors.Wrap(dserrors.ErrCodeStorageWrite, fmt.Errorf("create registry directory: %w", err))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, dserrors.Wrap(dserrors.ErrCodeStorageRead, fmt.Errorf("open registry database: %w", err))
	}

	// modernc.org/sqlite serializes access itself; one connection avoids
	// SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(registrySchema); err != nil {
		db.Close()
		return nil, dserrors.Wrap(dserrors.ErrCodeStorageWrite, fmt.Errorf("initialize registry schema: %w", err))
	}

	return &SQLiteRegistry{db: db}, nil
}

// Save inserts or replaces a document record.
func (r *SQLiteRegistry) Save(ctx context.Context, rec *DocumentRecord) error {
	if rec == nil || rec.ID == "" {
		return dserrors.ValidationError(dserrors.ErrCodeInvalidInput, "document record requires an ID")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, content_hash, collection, chunk_count, status, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			content_hash = excluded.content_hash,
			collection = excluded.collection,
			chunk_count = excluded.chunk_count,
			status = excluded.status,
			ingested_at = excluded.ingested_at`,
		rec.ID, rec.Filename, rec.ContentHash, rec.Collection,
		rec.ChunkCount, string(rec.Status), rec.IngestedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return dserrors.Wrap(dserrors.ErrCodeStorageWrite, fmt.Errorf("save document record %q: %w", rec.ID, err))
	}
	return nil
}

// Get returns the record for a document ID, or nil when absent.
func (r *SQLiteRegistry) Get(ctx context.Context, id string) (*DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, filename, content_hash, collection, chunk_count, status, ingested_at
		FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// FindByHash returns the completed record matching a content hash within a
// collection, or nil when no such document exists.
func (r *SQLiteRegistry) FindByHash(ctx context.Context, collection, contentHash string) (*DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, filename, content_hash, collection, chunk_count, status, ingested_at
		FROM documents
		WHERE collection = ? AND content_hash = ? AND status = ?
		LIMIT 1`, collection, contentHash, string(DocumentStatusComplete))
	return scanDocument(row)
}

// Delete removes a document record. Deleting an absent record is a no-op.
func (r *SQLiteRegistry) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return dserrors.Wrap(dserrors.ErrCodeStorageDelete, fmt.Errorf("delete document record %q: %w", id, err))
	}
	return nil
}

// List returns all records in a collection, newest first.
func (r *SQLiteRegistry) List(ctx context.Context, collection string) ([]*DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, filename, content_hash, collection, chunk_count, status, ingested_at
		FROM documents WHERE collection = ?
		ORDER BY ingested_at DESC`, collection)
	if err != nil {
		return nil, dserrors.Wrap(dserrors.ErrCodeStorageRead, fmt.Errorf("list document records: %w", err))
	}
	defer rows.Close()

	var records []*DocumentRecord
	for rows.Next() {
		rec, err := scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dserrors.Wrap(dserrors.ErrCodeStorageRead, fmt.Errorf("iterate document records: %w", err))
	}
	return records, nil
}

// Close closes the database.
func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row *sql.Row) (*DocumentRecord, error) {
	rec, err := scanDocumentRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func scanDocumentRow(row rowScanner) (*DocumentRecord, error) {
	var (
		rec        DocumentRecord
		status     string
		ingestedAt string
	)
	if err := row.Scan(&rec.ID, &rec.Filename, &rec.ContentHash, &rec.Collection,
		&rec.ChunkCount, &status, &ingestedAt); err != nil {
		return nil, err
	}
	rec.Status = DocumentStatus(status)

	ts, err := time.Parse(time.RFC3339Nano, ingestedAt)
	if err != nil {
		return nil, dserrors.Wrap(dserrors.ErrCodeStorageRead, fmt.Errorf("parse ingested_at for %q: %w", rec.ID, err))
	}
	rec.IngestedAt = ts
	return &rec, nil
}
