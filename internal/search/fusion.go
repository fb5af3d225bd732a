package search

import "sort"

// missingRank is the effective rank for an item absent from one list. Large
// enough that the absent list's contribution is negligible without resorting
// to floating-point infinity.
const missingRank = 9999

// fusionCandidate is one item entering RRF fusion, identified by chunk ID
// with its 1-based rank in a source list.
type fusionCandidate struct {
	chunkID string
	rank    int
}

// fusedResult is one item after RRF fusion, before truncation.
type fusedResult struct {
	chunkID    string
	rrf        float64
	denseRank  int // 0 when absent from the dense list
	sparseRank int // 0 when absent from the sparse list
}

// fuseRRF combines a dense and a sparse ranked list with Reciprocal Rank
// Fusion:
//
//	rrf(d) = 1/(k + rank_dense) + 1/(k + rank_sparse)
//
// Items absent from a list contribute with the missingRank sentinel. The
// returned list is sorted by rrf descending (ties by chunk ID for
// determinism) and truncated to topK.
func fuseRRF(dense, sparse []fusionCandidate, k, topK int) []*fusedResult {
	if len(dense) == 0 && len(sparse) == 0 {
		return []*fusedResult{}
	}

	fused := make(map[string]*fusedResult, len(dense)+len(sparse))

	get := func(chunkID string) *fusedResult {
		if f, ok := fused[chunkID]; ok {
			return f
		}
		f := &fusedResult{chunkID: chunkID}
		fused[chunkID] = f
		return f
	}

	for _, c := range dense {
		f := get(c.chunkID)
		f.denseRank = c.rank
	}
	for _, c := range sparse {
		f := get(c.chunkID)
		f.sparseRank = c.rank
	}

	for _, f := range fused {
		denseRank := f.denseRank
		if denseRank == 0 {
			denseRank = missingRank
		}
		sparseRank := f.sparseRank
		if sparseRank == 0 {
			sparseRank = missingRank
		}
		f.rrf = 1.0/float64(k+denseRank) + 1.0/float64(k+sparseRank)
	}

	results := make([]*fusedResult, 0, len(fused))
	for _, f := range fused {
		results = append(results, f)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].rrf != results[j].rrf {
			return results[i].rrf > results[j].rrf
		}
		return results[i].chunkID < results[j].chunkID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// normalizeRRF converts a raw RRF value to [0,100]. The maximum attainable
// value, 2/(k+1), belongs to an item ranked first in both lists.
func normalizeRRF(rrf float64, k int) float64 {
	maxRRF := 2.0 / float64(k+1)
	return clampScore(rrf / maxRRF * 100.0)
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
