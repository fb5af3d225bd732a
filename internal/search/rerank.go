package search

import (
	"context"
	"fmt"

	dserrors "github.com/docsift/docsift/internal/errors"
)

// Reranker reorders a result list after the primary retrieval mode ran.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []*Result) ([]*Result, error)
}

// RelevanceScorer scores (query, text) pairs with a finer-grained model than
// the first-pass retrieval. Scores are relative; only their ordering and
// ratios matter, normalization happens in the reranker.
type RelevanceScorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// CrossReranker re-scores every candidate against the query with a
// RelevanceScorer, replaces the prior scores with the re-normalized new ones,
// and re-sorts.
type CrossReranker struct {
	scorer RelevanceScorer
}

// NewCrossReranker creates a cross-relevance reranker.
func NewCrossReranker(scorer RelevanceScorer) *CrossReranker {
	return &CrossReranker{scorer: scorer}
}

// Rerank replaces result scores with normalized cross-relevance scores.
func (r *CrossReranker) Rerank(ctx context.Context, query string, results []*Result) ([]*Result, error) {
	if len(results) == 0 {
		return results, nil
	}

	texts := make([]string, len(results))
	for i, res := range results {
		texts[i] = res.Text
	}

	scores, err := r.scorer.Score(ctx, query, texts)
	if err != nil {
		return nil, dserrors.New(dserrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("cross-relevance scoring: %v", err), err)
	}
	if len(scores) != len(results) {
		return nil, dserrors.New(dserrors.ErrCodeInternal,
			fmt.Sprintf("scorer returned %d scores for %d results", len(scores), len(results)), nil)
	}

	var maxScore float64
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}

	for i, res := range results {
		if maxScore > 0 {
			res.Score = clampScore(scores[i] / maxScore * 100.0)
		} else {
			res.Score = 0
		}
	}

	sortByScore(results)
	return results, nil
}
