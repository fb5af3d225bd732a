package embed

import (
	"context"
	"hash/fnv"
	"strings"
)

// StaticDimensions is the embedding dimension for the static embedder.
const StaticDimensions = 256

// StaticEmbedder generates deterministic hash-based embeddings with no
// external dependencies. It exists for tests and offline operation; retrieval
// quality is limited to lexical similarity.
type StaticEmbedder struct{}

// Verify interface implementation at compile time.
var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// Embed generates a deterministic embedding for text.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return e.generateVector(text), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		results[i] = e.generateVector(text)
	}
	return results, nil
}

// generateVector hashes word unigrams and character trigrams into a fixed
// vector and normalizes it. Identical texts always produce identical vectors.
func (e *StaticEmbedder) generateVector(text string) []float32 {
	vec := make([]float32, StaticDimensions)

	words := strings.Fields(strings.ToLower(text))
	for _, w := range words {
		vec[hashToIndex(w, StaticDimensions)] += 1.0
	}

	normalized := strings.ToLower(strings.Join(words, " "))
	for i := 0; i+3 <= len(normalized); i++ {
		vec[hashToIndex(normalized[i:i+3], StaticDimensions)] += 0.5
	}

	return normalizeVector(vec)
}

// hashToIndex uses FNV-64 to map a string to a vector index.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return StaticDimensions
}

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return "static-fnv"
}

// Available always returns true.
func (e *StaticEmbedder) Available(_ context.Context) bool {
	return true
}

// Close is a no-op.
func (e *StaticEmbedder) Close() error {
	return nil
}
