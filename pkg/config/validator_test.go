package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Database:  DefaultDatabaseConfig(),
		Bus:       DefaultBusConfig(),
		LLM:       DefaultLLMConfig(),
		Embed:     DefaultEmbedConfig(),
		Retrieval: DefaultRetrievalConfig(),
		Defaults:  DefaultDefaults(),
		LogFormat: "json",
	}
}

func TestValidateAllRejectsMissingDatabaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.Database.URL = ""
	err := NewValidator(cfg).ValidateAll()
	assert.ErrorContains(t, err, "ACONTEXT_DB_URL")
}

func TestValidateAllRejectsBadThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.Database.URL = "postgres://localhost/acontext"
	cfg.Retrieval.DefaultThreshold = 3
	err := NewValidator(cfg).ValidateAll()
	assert.ErrorContains(t, err, "default_threshold")
}

func TestValidateAllAcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Database.URL = "postgres://localhost/acontext"
	err := NewValidator(cfg).ValidateAll()
	assert.NoError(t, err)
}
