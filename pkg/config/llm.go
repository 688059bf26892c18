package config

import "time"

// LLMConfig configures the LLM Complete Client (spec §4.E).
type LLMConfig struct {
	// BaseURL overrides the genai client endpoint; empty uses the provider
	// default.
	BaseURL string

	// APIKey authenticates against the LLM provider.
	APIKey string

	// Model is the chat-completion model name, e.g. "gemini-2.0-flash".
	Model string

	// RequestTimeout bounds a single complete() call.
	RequestTimeout time.Duration

	// MaxRetries bounds retries of a failed completion call; every error
	// is retried, not only transient transport errors (spec §4.E).
	MaxRetries int
}

// DefaultLLMConfig returns the built-in LLM client defaults.
func DefaultLLMConfig() *LLMConfig {
	return &LLMConfig{
		Model:          "gemini-2.0-flash",
		RequestTimeout: 60 * time.Second,
		MaxRetries:     2,
	}
}
