package search

// Default search parameters.
const (
	// DefaultRRFConstant is the standard RRF smoothing parameter. k=60 is
	// empirically validated across domains (Azure AI Search, OpenSearch).
	DefaultRRFConstant = 60

	// DefaultTopK is the default result count.
	DefaultTopK = 10

	// DefaultOverfetchFactor is how many times top_k each mode fetches
	// before fusion, so RRF has enough material.
	DefaultOverfetchFactor = 2
)

// Options configures one search call.
type Options struct {
	// Mode selects dense, sparse, or hybrid retrieval (default: hybrid).
	Mode Mode

	// Collections to search. At least one is required.
	Collections []string

	// TopK is the number of results to return (default: 10).
	TopK int

	// RRFConstant is the fusion smoothing parameter (default: 60).
	RRFConstant int

	// OverfetchFactor multiplies TopK for the per-mode candidate fetch in
	// hybrid mode (default: 2).
	OverfetchFactor int

	// Reranker, when set, reorders the fused result list.
	Reranker Reranker
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeHybrid
	}
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.RRFConstant <= 0 {
		o.RRFConstant = DefaultRRFConstant
	}
	if o.OverfetchFactor <= 0 {
		o.OverfetchFactor = DefaultOverfetchFactor
	}
	return o
}
