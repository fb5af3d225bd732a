package search

import (
	"context"
	"fmt"
	"math"

	"github.com/docsift/docsift/internal/embed"
	dserrors "github.com/docsift/docsift/internal/errors"
)

// DefaultMMRLambda balances relevance against diversity. Values toward 1
// favor relevance, toward 0 favor diversity.
const DefaultMMRLambda = 0.6

// MMRReranker applies Maximal Marginal Relevance: it iteratively selects the
// candidate maximizing
//
//	λ*relevance − (1−λ)*maxSimilarity(candidate, selected)
//
// which pushes near-duplicate chunks out of the final list. Scores are
// preserved; only the ordering changes.
type MMRReranker struct {
	embedder embed.Embedder
	lambda   float64
}

// NewMMRReranker creates an MMR reranker. lambda outside (0,1] falls back to
// the default.
func NewMMRReranker(embedder embed.Embedder, lambda float64) *MMRReranker {
	if lambda <= 0 || lambda > 1 {
		lambda = DefaultMMRLambda
	}
	return &MMRReranker{embedder: embedder, lambda: lambda}
}

// Rerank reorders results by iterative MMR selection. Candidate texts are
// embedded in a single batch; relevance is the result's existing normalized
// score scaled to [0,1].
func (r *MMRReranker) Rerank(ctx context.Context, query string, results []*Result) ([]*Result, error) {
	if len(results) <= 2 {
		return results, nil
	}

	texts := make([]string, len(results))
	for i, res := range results {
		texts[i] = res.Text
	}

	vectors, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, dserrors.New(dserrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("embed rerank candidates: %v", err), err)
	}
	if len(vectors) != len(results) {
		return nil, dserrors.New(dserrors.ErrCodeInternal,
			fmt.Sprintf("embedder returned %d vectors for %d candidates", len(vectors), len(results)), nil)
	}

	selected := make([]*Result, 0, len(results))
	selectedVecs := make([][]float32, 0, len(results))
	remaining := make([]int, len(results))
	for i := range remaining {
		remaining[i] = i
	}

	for len(remaining) > 0 {
		bestPos := 0
		bestUtility := math.Inf(-1)

		for pos, idx := range remaining {
			relevance := results[idx].Score / 100.0

			maxSim := 0.0
			for _, sv := range selectedVecs {
				if sim := cosineSimilarity(vectors[idx], sv); sim > maxSim {
					maxSim = sim
				}
			}

			utility := r.lambda*relevance - (1.0-r.lambda)*maxSim
			if utility > bestUtility {
				bestUtility = utility
				bestPos = pos
			}
		}

		idx := remaining[bestPos]
		selected = append(selected, results[idx])
		selectedVecs = append(selectedVecs, vectors[idx])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	return selected, nil
}

// cosineSimilarity between two vectors; zero for mismatched or empty input.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
