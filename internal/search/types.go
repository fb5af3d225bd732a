// Package search implements the retrieval engine: dense vector search,
// sparse keyword search, RRF hybrid fusion, and optional reranking, all
// scored on a common [0,100] scale.
package search

import "strings"

// Mode selects the retrieval strategy.
type Mode string

const (
	ModeDense  Mode = "dense"
	ModeSparse Mode = "sparse"
	ModeHybrid Mode = "hybrid"
)

// Valid reports whether m names a known retrieval mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeDense, ModeSparse, ModeHybrid:
		return true
	}
	return false
}

// Source names recorded on results for provenance.
const (
	SourceDense  = "dense"
	SourceSparse = "sparse"
)

// Result is one retrieval hit. Score is always in [0,100] regardless of
// mode, and a result list is non-increasing in Score by Rank unless an
// MMR reranker reordered it, in which case each Score still reflects the
// hit's pre-diversification relevance.
type Result struct {
	// ChunkID identifies the matched chunk.
	ChunkID string `json:"chunk_id"`

	// DocumentID is the chunk's parent document.
	DocumentID string `json:"document_id"`

	// Collection the hit came from.
	Collection string `json:"collection"`

	// Rank is the 1-based position in the final list.
	Rank int `json:"rank"`

	// Score is the normalized relevance in [0,100].
	Score float64 `json:"score"`

	// Text is the chunk content, loaded from object storage when available.
	Text string `json:"text,omitempty"`

	// PageNumber is the chunk's source page, 0 when unknown.
	PageNumber int `json:"page_number,omitempty"`

	// Sources records which search modes produced this hit.
	Sources []string `json:"sources,omitempty"`
}

// FromSource reports whether the result was produced by the named source.
func (r *Result) FromSource(name string) bool {
	for _, s := range r.Sources {
		if s == name {
			return true
		}
	}
	return false
}

// documentIDFromChunkID recovers the parent document ID from the
// deterministic chunk ID layout "<document-id>_<index>".
func documentIDFromChunkID(chunkID string) string {
	if i := strings.LastIndex(chunkID, "_"); i > 0 {
		return chunkID[:i]
	}
	return chunkID
}
