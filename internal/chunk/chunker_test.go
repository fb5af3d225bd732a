package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsift/docsift/internal/extract"
)

// words generates n distinct tokens: w0 w1 w2 ...
func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func page(num int, text string) extract.Page {
	return extract.Page{Number: num, Text: text}
}

func TestChunkPages_TokenBound(t *testing.T) {
	c := NewChunker(Config{MaxTokens: 100, OverlapTokens: 10, PreservePages: true})

	chunks := c.ChunkPages("doc1", []extract.Page{page(1, words(450))})

	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.TokenCount, 100, "chunk %d exceeds max tokens", ch.Index)
	}
}

func TestChunkPages_OverlapCorrectness(t *testing.T) {
	c := NewChunker(Config{MaxTokens: 100, OverlapTokens: 10, PreservePages: true})

	chunks := c.ChunkPages("doc1", []extract.Page{page(1, words(350))})
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		overlap := chunks[i].OverlapTokens
		require.Equal(t, 10, overlap)

		prev := Tokenize(chunks[i-1].Text)
		cur := Tokenize(chunks[i].Text)
		assert.Equal(t, prev[len(prev)-overlap:], cur[:overlap],
			"first %d tokens of chunk %d should equal last %d tokens of chunk %d", overlap, i, overlap, i-1)
	}
}

func TestChunkPages_PageBoundaryInvariant(t *testing.T) {
	c := NewChunker(Config{MaxTokens: 100, OverlapTokens: 10, PreservePages: true})

	// 150 tokens on each page: chunks must never mix pages.
	chunks := c.ChunkPages("doc1", []extract.Page{
		page(1, words(150)),
		page(2, words(150)),
	})

	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.Contains(t, []int{1, 2}, ch.PageNumber)
	}

	// First chunk of each page restarts without overlap.
	pageStarts := map[int]bool{}
	for _, ch := range chunks {
		if !pageStarts[ch.PageNumber] {
			pageStarts[ch.PageNumber] = true
			assert.Zero(t, ch.OverlapTokens, "page-opening chunk %d should have no overlap", ch.Index)
		}
	}
}

func TestChunkPages_ShortPageSingleChunk(t *testing.T) {
	c := NewChunker(Config{MaxTokens: 100, OverlapTokens: 10, PreservePages: true})

	// Page shorter than the overlap still yields exactly one chunk.
	chunks := c.ChunkPages("doc1", []extract.Page{page(3, words(5))})

	require.Len(t, chunks, 1)
	assert.Equal(t, 5, chunks[0].TokenCount)
	assert.Equal(t, 3, chunks[0].PageNumber)
	assert.Zero(t, chunks[0].OverlapTokens)
}

func TestChunkPages_EmptyPageSkipped(t *testing.T) {
	c := NewChunker(Config{MaxTokens: 100, OverlapTokens: 10, PreservePages: true})

	chunks := c.ChunkPages("doc1", []extract.Page{
		page(1, words(50)),
		page(2, "   \n  "),
		page(3, words(50)),
	})

	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, 3, chunks[1].PageNumber)
}

func TestChunkPages_DeterministicIDsAndIndexes(t *testing.T) {
	c := NewChunker(Config{MaxTokens: 50, OverlapTokens: 5, PreservePages: true})

	chunks := c.ChunkPages("doc-abc", []extract.Page{page(1, words(120))})

	require.Greater(t, len(chunks), 1)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, ChunkID("doc-abc", i), ch.ID)
		assert.Equal(t, "doc-abc", ch.DocumentID)
	}
}

func TestChunkPages_CrossPageWhenNotPreserving(t *testing.T) {
	c := NewChunker(Config{MaxTokens: 100, OverlapTokens: 10, PreservePages: false})

	chunks := c.ChunkPages("doc1", []extract.Page{
		page(1, words(60)),
		page(2, words(60)),
	})

	// 120 tokens in one stream: two chunks, the first one spans the boundary.
	require.Len(t, chunks, 2)
	assert.Equal(t, 100, chunks[0].TokenCount)
	assert.Equal(t, 1, chunks[0].PageNumber)
}

func TestChunkPages_ThreePageScenario(t *testing.T) {
	// 3-page well-formed document, max_tokens=100 overlap=10: at least 3 chunks.
	c := NewChunker(Config{MaxTokens: 100, OverlapTokens: 10, PreservePages: true})

	chunks := c.ChunkPages("doc1", []extract.Page{
		page(1, words(110)),
		page(2, words(110)),
		page(3, words(110)),
	})

	assert.GreaterOrEqual(t, len(chunks), 3)
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.TokenCount, 100)
	}
}

func TestNewChunker_SanitizesConfig(t *testing.T) {
	c := NewChunker(Config{MaxTokens: -1, OverlapTokens: -5})
	chunks := c.ChunkPages("doc1", []extract.Page{page(1, words(10))})
	require.Len(t, chunks, 1)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello,", "world"}, Tokenize("  hello,\n world "))
	assert.Empty(t, Tokenize("   "))
	assert.Equal(t, 2, CountTokens("two tokens"))
}
