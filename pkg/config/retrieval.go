package config

// RetrievalConfig holds the Retrieval Engine's defaults (spec §4.L).
type RetrievalConfig struct {
	// DefaultTopK is used when a caller omits limit.
	DefaultTopK int

	// DefaultThreshold is the cosine-distance ceiling (range [0,2]) used
	// when a caller omits threshold.
	DefaultThreshold float64

	// FetchRatio over-fetches candidate rows before Go-side dedup, since
	// multiple embeddings per block can collapse to fewer distinct blocks.
	FetchRatio float64
}

// DefaultRetrievalConfig returns the built-in retrieval defaults.
func DefaultRetrievalConfig() *RetrievalConfig {
	return &RetrievalConfig{
		DefaultTopK:      10,
		DefaultThreshold: 0.5,
		FetchRatio:       2.0,
	}
}
