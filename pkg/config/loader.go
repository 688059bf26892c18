package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load a local .env file if present (missing file is not an error).
//  2. Read every setting from the environment, falling back to built-ins.
//  3. Validate all configuration.
//  4. Return Config ready for use.
func Initialize(_ context.Context, envFile string) (*Config, error) {
	log := slog.With("env_file", envFile)

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg := &Config{
		Database:  loadDatabaseConfig(),
		Bus:       loadBusConfig(),
		LLM:       loadLLMConfig(),
		Embed:     loadEmbedConfig(),
		Retrieval: DefaultRetrievalConfig(),
		Defaults:  DefaultDefaults(),
		LogFormat: getenv("ACONTEXT_LOG_FORMAT", "json"),
	}

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized", "log_format", cfg.LogFormat)
	return cfg, nil
}

func loadDatabaseConfig() *DatabaseConfig {
	d := DefaultDatabaseConfig()
	d.URL = getenv("ACONTEXT_DB_URL", "")
	d.MaxPoolSize = getenvInt("ACONTEXT_DB_MAX_POOL_SIZE", d.MaxPoolSize)
	d.ConnectTimeout = getenvDuration("ACONTEXT_DB_CONNECT_TIMEOUT", d.ConnectTimeout)
	return d
}

func loadBusConfig() *BusConfig {
	b := DefaultBusConfig()
	b.URL = getenv("ACONTEXT_BUS_URL", "nats://localhost:4222")
	b.QoS = getenvInt("ACONTEXT_BUS_QOS", b.QoS)
	b.HandlerTimeout = getenvDuration("ACONTEXT_BUS_HANDLER_TIMEOUT", b.HandlerTimeout)
	b.MaxRetries = getenvInt("ACONTEXT_BUS_MAX_RETRIES", b.MaxRetries)
	b.RetryDelayUnit = getenvDuration("ACONTEXT_BUS_RETRY_DELAY_UNIT", b.RetryDelayUnit)
	b.MessageTTL = getenvDuration("ACONTEXT_BUS_MESSAGE_TTL", b.MessageTTL)
	b.DLXTTL = getenvDuration("ACONTEXT_BUS_DLX_TTL", b.DLXTTL)
	return b
}

func loadLLMConfig() *LLMConfig {
	l := DefaultLLMConfig()
	l.BaseURL = getenv("ACONTEXT_LLM_BASE_URL", "")
	l.APIKey = getenv("ACONTEXT_LLM_API_KEY", "")
	l.Model = getenv("ACONTEXT_LLM_MODEL", l.Model)
	l.RequestTimeout = getenvDuration("ACONTEXT_LLM_REQUEST_TIMEOUT", l.RequestTimeout)
	l.MaxRetries = getenvInt("ACONTEXT_LLM_MAX_RETRIES", l.MaxRetries)
	return l
}

func loadEmbedConfig() *EmbedConfig {
	e := DefaultEmbedConfig()
	e.BaseURL = getenv("ACONTEXT_EMBED_BASE_URL", "")
	e.APIKey = getenv("ACONTEXT_EMBED_API_KEY", "")
	e.Model = getenv("ACONTEXT_EMBED_MODEL", e.Model)
	e.Dimension = getenvInt("ACONTEXT_EMBED_DIMENSION", e.Dimension)
	e.RequestTimeout = getenvDuration("ACONTEXT_EMBED_REQUEST_TIMEOUT", e.RequestTimeout)
	return e
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
