package config

import "fmt"

// Validator validates configuration comprehensively with clear error messages.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast — stops at the
// first error).
func (v *Validator) ValidateAll() error {
	if err := v.validateDatabase(); err != nil {
		return fmt.Errorf("database validation failed: %w", err)
	}
	if err := v.validateBus(); err != nil {
		return fmt.Errorf("bus validation failed: %w", err)
	}
	if err := v.validateLLM(); err != nil {
		return fmt.Errorf("LLM validation failed: %w", err)
	}
	if err := v.validateEmbed(); err != nil {
		return fmt.Errorf("embed validation failed: %w", err)
	}
	if err := v.validateRetrieval(); err != nil {
		return fmt.Errorf("retrieval validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateDatabase() error {
	d := v.cfg.Database
	if d == nil {
		return fmt.Errorf("database configuration is nil")
	}
	if d.URL == "" {
		return fmt.Errorf("ACONTEXT_DB_URL must be set")
	}
	if d.MaxPoolSize < 1 {
		return fmt.Errorf("max_pool_size must be at least 1, got %d", d.MaxPoolSize)
	}
	if d.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be positive, got %v", d.ConnectTimeout)
	}
	return nil
}

func (v *Validator) validateBus() error {
	b := v.cfg.Bus
	if b == nil {
		return fmt.Errorf("bus configuration is nil")
	}
	if b.URL == "" {
		return fmt.Errorf("ACONTEXT_BUS_URL must be set")
	}
	if b.QoS < 1 {
		return fmt.Errorf("qos must be at least 1, got %d", b.QoS)
	}
	if b.HandlerTimeout <= 0 {
		return fmt.Errorf("handler_timeout must be positive, got %v", b.HandlerTimeout)
	}
	if b.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got %d", b.MaxRetries)
	}
	if b.RetryDelayUnit <= 0 {
		return fmt.Errorf("retry_delay_unit must be positive, got %v", b.RetryDelayUnit)
	}
	return nil
}

func (v *Validator) validateLLM() error {
	l := v.cfg.LLM
	if l == nil {
		return fmt.Errorf("LLM configuration is nil")
	}
	if l.Model == "" {
		return fmt.Errorf("model must be set")
	}
	if l.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", l.RequestTimeout)
	}
	return nil
}

func (v *Validator) validateEmbed() error {
	e := v.cfg.Embed
	if e == nil {
		return fmt.Errorf("embed configuration is nil")
	}
	if e.Model == "" {
		return fmt.Errorf("model must be set")
	}
	if e.Dimension < 1 {
		return fmt.Errorf("dimension must be at least 1, got %d", e.Dimension)
	}
	return nil
}

func (v *Validator) validateRetrieval() error {
	r := v.cfg.Retrieval
	if r == nil {
		return fmt.Errorf("retrieval configuration is nil")
	}
	if r.DefaultTopK < 1 {
		return fmt.Errorf("default_topk must be at least 1, got %d", r.DefaultTopK)
	}
	if r.DefaultThreshold < 0 || r.DefaultThreshold > 2 {
		return fmt.Errorf("default_threshold must be within [0,2], got %v", r.DefaultThreshold)
	}
	if r.FetchRatio < 1 {
		return fmt.Errorf("fetch_ratio must be at least 1, got %v", r.FetchRatio)
	}
	return nil
}
