package chunk

import (
	"fmt"
	"time"

	"github.com/docsift/docsift/internal/extract"
	"github.com/docsift/docsift/internal/store"
)

// Config configures the token-based chunker.
type Config struct {
	// MaxTokens is the chunk size limit.
	MaxTokens int

	// OverlapTokens is how many tokens of the previous chunk's tail start the
	// next chunk. Must be smaller than MaxTokens.
	OverlapTokens int

	// PreservePages prevents a chunk from spanning two pages. A page with
	// fewer than MaxTokens remaining closes the chunk early at the boundary.
	PreservePages bool
}

// DefaultConfig returns the default chunking configuration.
func DefaultConfig() Config {
	return Config{
		MaxTokens:     400,
		OverlapTokens: 50,
		PreservePages: true,
	}
}

// Chunker produces store.Chunk values from extracted pages.
type Chunker struct {
	cfg Config
}

// NewChunker creates a chunker. Invalid config values fall back to defaults.
func NewChunker(cfg Config) *Chunker {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	if cfg.OverlapTokens < 0 || cfg.OverlapTokens >= cfg.MaxTokens {
		cfg.OverlapTokens = DefaultConfig().OverlapTokens
		if cfg.OverlapTokens >= cfg.MaxTokens {
			cfg.OverlapTokens = cfg.MaxTokens / 4
		}
	}
	return &Chunker{cfg: cfg}
}

// ChunkID derives the deterministic chunk ID for a document and chunk index.
// Ingestion and rollback both rely on this rule.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_%04d", documentID, index)
}

// segment is a run of tokens that chunks may not cross, annotated with the
// page each token came from.
type segment struct {
	tokens []string
	pages  []int
}

// ChunkPages splits pages into chunks. Token accumulation is greedy up to
// MaxTokens; each subsequent chunk re-includes the previous chunk's last
// OverlapTokens tokens. Zero-token pages are skipped. A page shorter than
// OverlapTokens still yields exactly one chunk.
func (c *Chunker) ChunkPages(documentID string, pages []extract.Page) []*store.Chunk {
	segments := c.buildSegments(pages)

	var chunks []*store.Chunk
	now := time.Now()

	for _, seg := range segments {
		chunks = c.chunkSegment(documentID, seg, chunks, now)
	}

	return chunks
}

// buildSegments groups page tokens into boundary-respecting segments: one per
// page when PreservePages is set, otherwise a single document-wide segment.
func (c *Chunker) buildSegments(pages []extract.Page) []segment {
	if c.cfg.PreservePages {
		segments := make([]segment, 0, len(pages))
		for _, p := range pages {
			tokens := Tokenize(p.Text)
			if len(tokens) == 0 {
				continue
			}
			pageNums := make([]int, len(tokens))
			for i := range pageNums {
				pageNums[i] = p.Number
			}
			segments = append(segments, segment{tokens: tokens, pages: pageNums})
		}
		return segments
	}

	var all segment
	for _, p := range pages {
		tokens := Tokenize(p.Text)
		for _, tok := range tokens {
			all.tokens = append(all.tokens, tok)
			all.pages = append(all.pages, p.Number)
		}
	}
	if len(all.tokens) == 0 {
		return nil
	}
	return []segment{all}
}

// chunkSegment greedily cuts one segment into chunks, appending to chunks.
func (c *Chunker) chunkSegment(documentID string, seg segment, chunks []*store.Chunk, now time.Time) []*store.Chunk {
	start := 0
	overlap := 0

	for start < len(seg.tokens) {
		end := start + c.cfg.MaxTokens
		if end > len(seg.tokens) {
			end = len(seg.tokens)
		}

		tokens := seg.tokens[start:end]
		text := Join(tokens)
		index := len(chunks)

		chunks = append(chunks, &store.Chunk{
			ID:            ChunkID(documentID, index),
			DocumentID:    documentID,
			Index:         index,
			Text:          text,
			TokenCount:    len(tokens),
			CharCount:     len(text),
			PageNumber:    seg.pages[start],
			OverlapTokens: overlap,
			CreatedAt:     now,
		})

		if end == len(seg.tokens) {
			break
		}

		// The next chunk re-includes this chunk's tail for continuity.
		// A chunk shorter than OverlapTokens caps the overlap at its own
		// length so the window always advances.
		overlap = c.cfg.OverlapTokens
		if overlap > end-start {
			overlap = end - start
		}
		start = end - overlap
	}

	return chunks
}
