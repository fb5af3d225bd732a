package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// maxZeroResultQueries caps the zero-result buffer so the table stays a
// recent window, not an unbounded log.
const maxZeroResultQueries = 100

// Store persists search metrics to an embedded SQLite database.
type Store struct {
	db *sql.DB
}

const metricsSchema = `
CREATE TABLE IF NOT EXISTS search_stats (
	date  TEXT NOT NULL,
	mode  TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (date, mode)
);

CREATE TABLE IF NOT EXISTS latency_histogram (
	bucket TEXT PRIMARY KEY,
	count  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS zero_result_queries (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	query     TEXT NOT NULL,
	timestamp TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS query_terms (
	term      TEXT PRIMARY KEY,
	count     INTEGER NOT NULL DEFAULT 1,
	last_seen TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_query_terms_count ON query_terms(count DESC);
`

// NewStore opens (or creates) the metrics database at path.
// Use ":memory:" for an ephemeral store in tests.
func NewStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create metrics directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open metrics database: %w", err)
	}

	// modernc.org/sqlite serializes access itself; one connection avoids
	// SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(metricsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize metrics schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Record persists one search observation. Metrics failures should never
// fail a search; callers log and move on.
func (s *Store) Record(ctx context.Context, obs SearchObservation) error {
	ts := obs.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	date := ts.Format("2006-01-02")

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO search_stats (date, mode, count) VALUES (?, ?, 1)
		ON CONFLICT(date, mode) DO UPDATE SET count = count + 1`,
		date, obs.Mode); err != nil {
		return fmt.Errorf("record search mode: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO latency_histogram (bucket, count) VALUES (?, 1)
		ON CONFLICT(bucket) DO UPDATE SET count = count + 1`,
		string(LatencyToBucket(obs.Latency))); err != nil {
		return fmt.Errorf("record latency bucket: %w", err)
	}

	stamp := ts.Format(time.RFC3339Nano)
	for _, term := range queryTerms(obs.Query) {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO query_terms (term, count, last_seen) VALUES (?, 1, ?)
			ON CONFLICT(term) DO UPDATE SET count = count + 1, last_seen = excluded.last_seen`,
			term, stamp); err != nil {
			return fmt.Errorf("record query term: %w", err)
		}
	}

	if obs.ResultCount == 0 {
		if err := s.recordZeroResult(ctx, obs.Query, stamp); err != nil {
			return err
		}
	}

	return nil
}

// recordZeroResult appends to the zero-result buffer and trims it to the
// most recent entries.
func (s *Store) recordZeroResult(ctx context.Context, query, stamp string) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO zero_result_queries (query, timestamp) VALUES (?, ?)`,
		query, stamp); err != nil {
		return fmt.Errorf("record zero-result query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM zero_result_queries
		WHERE id NOT IN (
			SELECT id FROM zero_result_queries ORDER BY id DESC LIMIT ?
		)`, maxZeroResultQueries); err != nil {
		return fmt.Errorf("trim zero-result queries: %w", err)
	}
	return nil
}

// TermCount is a query term with its cumulative frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Summary aggregates everything recorded so far.
type Summary struct {
	TotalSearches     int64                   `json:"total_searches"`
	ByMode            map[string]int64        `json:"by_mode"`
	LatencyHistogram  map[LatencyBucket]int64 `json:"latency_histogram"`
	TopTerms          []TermCount             `json:"top_terms"`
	ZeroResultQueries []string                `json:"zero_result_queries"`
}

// Summarize reads the aggregated metrics.
func (s *Store) Summarize(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		ByMode:           make(map[string]int64),
		LatencyHistogram: make(map[LatencyBucket]int64),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT mode, SUM(count) FROM search_stats GROUP BY mode`)
	if err != nil {
		return nil, fmt.Errorf("read search stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var mode string
		var count int64
		if err := rows.Scan(&mode, &count); err != nil {
			return nil, fmt.Errorf("scan search stats: %w", err)
		}
		summary.ByMode[mode] = count
		summary.TotalSearches += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read search stats: %w", err)
	}

	latRows, err := s.db.QueryContext(ctx, `SELECT bucket, count FROM latency_histogram`)
	if err != nil {
		return nil, fmt.Errorf("read latency histogram: %w", err)
	}
	defer latRows.Close()
	for latRows.Next() {
		var bucket string
		var count int64
		if err := latRows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("scan latency histogram: %w", err)
		}
		summary.LatencyHistogram[LatencyBucket(bucket)] = count
	}
	if err := latRows.Err(); err != nil {
		return nil, fmt.Errorf("read latency histogram: %w", err)
	}

	termRows, err := s.db.QueryContext(ctx, `
		SELECT term, count FROM query_terms ORDER BY count DESC, term ASC LIMIT 20`)
	if err != nil {
		return nil, fmt.Errorf("read query terms: %w", err)
	}
	defer termRows.Close()
	for termRows.Next() {
		var tc TermCount
		if err := termRows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan query terms: %w", err)
		}
		summary.TopTerms = append(summary.TopTerms, tc)
	}
	if err := termRows.Err(); err != nil {
		return nil, fmt.Errorf("read query terms: %w", err)
	}

	zeroRows, err := s.db.QueryContext(ctx, `
		SELECT query FROM zero_result_queries ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("read zero-result queries: %w", err)
	}
	defer zeroRows.Close()
	for zeroRows.Next() {
		var q string
		if err := zeroRows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan zero-result queries: %w", err)
		}
		summary.ZeroResultQueries = append(summary.ZeroResultQueries, q)
	}
	if err := zeroRows.Err(); err != nil {
		return nil, fmt.Errorf("read zero-result queries: %w", err)
	}

	return summary, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
