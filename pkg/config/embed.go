package config

import "time"

// EmbedConfig configures the Embedding Client (spec §4.D).
type EmbedConfig struct {
	// BaseURL overrides the genai client endpoint; empty uses the provider
	// default.
	BaseURL string

	// APIKey authenticates against the embedding provider.
	APIKey string

	// Model is the embedding model name, e.g. "text-embedding-004".
	Model string

	// Dimension is the vector width requested from the model on every
	// embedding call; the width of the returned vector is not checked.
	Dimension int

	// RequestTimeout bounds a single embed() call.
	RequestTimeout time.Duration
}

// DefaultEmbedConfig returns the built-in embedding client defaults.
func DefaultEmbedConfig() *EmbedConfig {
	return &EmbedConfig{
		Model:          "text-embedding-004",
		Dimension:      768,
		RequestTimeout: 30 * time.Second,
	}
}
