package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/docsift/docsift/internal/embed"
	dserrors "github.com/docsift/docsift/internal/errors"
	"github.com/docsift/docsift/internal/store"
)

// Engine is the retrieval facade. It owns no data; it queries the vector and
// lexical indexes, fuses, enriches from object storage, and reranks.
// Safe for concurrent use.
type Engine struct {
	embedder embed.Embedder
	vectors  store.VectorIndex
	lexical  store.LexicalIndex
	objects  store.ObjectStore
	logger   *slog.Logger
}

// NewEngine creates a retrieval engine over the given collaborators.
// objects may be nil, which disables text enrichment.
func NewEngine(embedder embed.Embedder, vectors store.VectorIndex, lexical store.LexicalIndex,
	objects store.ObjectStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		embedder: embedder,
		vectors:  vectors,
		lexical:  lexical,
		objects:  objects,
		logger:   logger,
	}
}

// Search runs one retrieval request across the requested collections.
// A failure inside a single collection is logged and that collection is
// skipped; only failures that void the whole query (no collections, empty
// query, unknown mode, query embedding failure) return an error.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]*Result, error) {
	opts = opts.withDefaults()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, dserrors.New(dserrors.ErrCodeInvalidInput, "query must not be empty", nil)
	}
	if len(opts.Collections) == 0 {
		return nil, dserrors.New(dserrors.ErrCodeInvalidInput, "at least one collection is required", nil)
	}
	// A bad mode voids the whole query; it must not degrade into an empty
	// result set via the per-collection skip below.
	if !opts.Mode.Valid() {
		return nil, dserrors.New(dserrors.ErrCodeInvalidInput,
			fmt.Sprintf("unknown search mode %q", opts.Mode), nil)
	}

	// Dense and hybrid modes embed the query exactly once. Without the
	// query vector no dense results are possible, so this fails the call.
	var queryVec []float32
	if opts.Mode == ModeDense || opts.Mode == ModeHybrid {
		vec, err := e.embedder.Embed(ctx, query)
		if err != nil {
			return nil, dserrors.New(dserrors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("embed query: %v", err), err)
		}
		queryVec = vec
	}

	var merged []*Result
	for _, collection := range opts.Collections {
		results, err := e.searchCollection(ctx, collection, query, queryVec, opts)
		if err != nil {
			e.logger.Warn("collection search failed, skipping",
				slog.String("collection", collection),
				slog.String("mode", string(opts.Mode)),
				slog.String("error", err.Error()))
			continue
		}
		merged = append(merged, results...)
	}

	sortByScore(merged)
	if len(merged) > opts.TopK {
		merged = merged[:opts.TopK]
	}

	e.enrich(ctx, merged)

	if opts.Reranker != nil {
		reranked, err := opts.Reranker.Rerank(ctx, query, merged)
		if err != nil {
			return nil, err
		}
		merged = reranked
	}

	for i, r := range merged {
		r.Rank = i + 1
	}
	return merged, nil
}

// searchCollection runs the mode-specific retrieval for one collection.
func (e *Engine) searchCollection(ctx context.Context, collection, query string,
	queryVec []float32, opts Options) ([]*Result, error) {
	switch opts.Mode {
	case ModeDense:
		return e.searchDense(ctx, collection, queryVec, opts.TopK)
	case ModeSparse:
		return e.searchSparse(ctx, collection, query, opts.TopK)
	case ModeHybrid:
		return e.searchHybrid(ctx, collection, query, queryVec, opts)
	default:
		return nil, dserrors.New(dserrors.ErrCodeInvalidInput,
			fmt.Sprintf("unknown search mode %q", opts.Mode), nil)
	}
}

// searchDense converts cosine distance d to score (1-d)*100. The index
// returns hits nearest-first, which keeps scores non-increasing.
func (e *Engine) searchDense(ctx context.Context, collection string, queryVec []float32, topK int) ([]*Result, error) {
	hits, err := e.vectors.Search(ctx, collection, queryVec, topK)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, &Result{
			ChunkID:    hit.ID,
			DocumentID: documentIDFromChunkID(hit.ID),
			Collection: collection,
			Score:      clampScore((1.0 - float64(hit.Distance)) * 100.0),
			Sources:    []string{SourceDense},
		})
	}
	return results, nil
}

// searchSparse normalizes raw lexical scores within the batch: the best hit
// gets 100, the rest scale proportionally. An all-zero batch stays zero.
func (e *Engine) searchSparse(ctx context.Context, collection, query string, topK int) ([]*Result, error) {
	hits, err := e.lexical.Search(ctx, collection, query, topK)
	if err != nil {
		return nil, err
	}

	var maxRaw float64
	for _, hit := range hits {
		if hit.Score > maxRaw {
			maxRaw = hit.Score
		}
	}

	results := make([]*Result, 0, len(hits))
	for _, hit := range hits {
		score := 0.0
		if maxRaw > 0 {
			score = clampScore(hit.Score / maxRaw * 100.0)
		}
		results = append(results, &Result{
			ChunkID:    hit.ID,
			DocumentID: documentIDFromChunkID(hit.ID),
			Collection: collection,
			Score:      score,
			Sources:    []string{SourceSparse},
		})
	}
	return results, nil
}

// searchHybrid over-fetches candidates from both modes concurrently and
// fuses them with RRF.
func (e *Engine) searchHybrid(ctx context.Context, collection, query string,
	queryVec []float32, opts Options) ([]*Result, error) {
	fetchK := opts.TopK * opts.OverfetchFactor

	var (
		denseHits  []*store.VectorResult
		sparseHits []*store.LexicalResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := e.vectors.Search(gctx, collection, queryVec, fetchK)
		if err != nil {
			return fmt.Errorf("dense search: %w", err)
		}
		denseHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := e.lexical.Search(gctx, collection, query, fetchK)
		if err != nil {
			return fmt.Errorf("sparse search: %w", err)
		}
		sparseHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dense := make([]fusionCandidate, len(denseHits))
	for i, hit := range denseHits {
		dense[i] = fusionCandidate{chunkID: hit.ID, rank: i + 1}
	}
	sparse := make([]fusionCandidate, len(sparseHits))
	for i, hit := range sparseHits {
		sparse[i] = fusionCandidate{chunkID: hit.ID, rank: i + 1}
	}

	fused := fuseRRF(dense, sparse, opts.RRFConstant, opts.TopK)

	results := make([]*Result, 0, len(fused))
	for _, f := range fused {
		sources := make([]string, 0, 2)
		if f.denseRank > 0 {
			sources = append(sources, SourceDense)
		}
		if f.sparseRank > 0 {
			sources = append(sources, SourceSparse)
		}
		results = append(results, &Result{
			ChunkID:    f.chunkID,
			DocumentID: documentIDFromChunkID(f.chunkID),
			Collection: collection,
			Score:      normalizeRRF(f.rrf, opts.RRFConstant),
			Sources:    sources,
		})
	}
	return results, nil
}

// enrich loads chunk text from object storage. Best-effort: a missing or
// unreadable record leaves the result without text.
func (e *Engine) enrich(ctx context.Context, results []*Result) {
	if e.objects == nil {
		return
	}
	for _, r := range results {
		key := fmt.Sprintf("%s/documents/%s/chunks/%s.json", r.Collection, r.DocumentID, r.ChunkID)
		data, err := e.objects.Get(ctx, key)
		if err != nil {
			e.logger.Debug("chunk record unavailable",
				slog.String("chunk_id", r.ChunkID),
				slog.String("error", err.Error()))
			continue
		}
		var c store.Chunk
		if err := json.Unmarshal(data, &c); err != nil {
			e.logger.Debug("chunk record unreadable",
				slog.String("chunk_id", r.ChunkID),
				slog.String("error", err.Error()))
			continue
		}
		r.Text = c.Text
		r.PageNumber = c.PageNumber
	}
}

// sortByScore orders results by score descending, ties broken by chunk ID
// for determinism.
func sortByScore(results []*Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}
