// Package config provides process-wide configuration for acontextd:
// database, message bus, LLM, embedding, and retrieval defaults, loaded
// from the environment at startup.
package config

// Config is the umbrella configuration object returned by Initialize and
// threaded through the rest of the process.
type Config struct {
	Database  *DatabaseConfig
	Bus       *BusConfig
	LLM       *LLMConfig
	Embed     *EmbedConfig
	Retrieval *RetrievalConfig
	Defaults  *Defaults

	// LogFormat selects the slog handler: "json" (production) or "text" (development).
	LogFormat string
}
