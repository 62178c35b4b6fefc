package config

import (
	"fmt"
	"time"
)

// ExecutorConfig configures the action executor.
type ExecutorConfig struct {
	// MaxRetries is the retry budget for transient failures.
	// Default: 2
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"title=Max Retries,description=Retry budget for transient failures,default=2"`

	// RetryBaseDelay is the backoff base; attempt n sleeps
	// base × 2^n × (1 + jitter).
	// Default: 1s
	RetryBaseDelay time.Duration `yaml:"retry_base_delay,omitempty" json:"retry_base_delay,omitempty" jsonschema:"title=Retry Base Delay,description=Exponential backoff base"`

	// HealthCacheTTL caches the browser liveness probe result.
	// Default: 5s
	HealthCacheTTL time.Duration `yaml:"health_cache_ttl,omitempty" json:"health_cache_ttl,omitempty" jsonschema:"title=Health Cache TTL,description=Browser health probe cache"`

	// NavigateTimeout bounds navigate, go_back and go_forward.
	// Default: 15s
	NavigateTimeout time.Duration `yaml:"navigate_timeout,omitempty" json:"navigate_timeout,omitempty" jsonschema:"title=Navigate Timeout"`

	// ActionTimeout bounds click, type, press, select and hover.
	// Default: 5s
	ActionTimeout time.Duration `yaml:"action_timeout,omitempty" json:"action_timeout,omitempty" jsonschema:"title=Action Timeout"`

	// MaxWait caps the wait action's requested duration.
	// Default: 60s
	MaxWait time.Duration `yaml:"max_wait,omitempty" json:"max_wait,omitempty" jsonschema:"title=Max Wait,description=Cap on the wait action"`

	// MaxTextLen bounds text arguments before they reach the driver.
	// Default: 10000
	MaxTextLen int `yaml:"max_text_len,omitempty" json:"max_text_len,omitempty" jsonschema:"title=Max Text Length,description=Upper bound on text arguments,default=10000"`

	// MaxURLLen bounds url arguments.
	// Default: 2048
	MaxURLLen int `yaml:"max_url_len,omitempty" json:"max_url_len,omitempty" jsonschema:"title=Max URL Length,default=2048"`
}

// SetDefaults applies default values to ExecutorConfig.
func (c *ExecutorConfig) SetDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = 1 * time.Second
	}
	if c.HealthCacheTTL == 0 {
		c.HealthCacheTTL = 5 * time.Second
	}
	if c.NavigateTimeout == 0 {
		c.NavigateTimeout = 15 * time.Second
	}
	if c.ActionTimeout == 0 {
		c.ActionTimeout = 5 * time.Second
	}
	if c.MaxWait == 0 {
		c.MaxWait = 60 * time.Second
	}
	if c.MaxTextLen == 0 {
		c.MaxTextLen = 10_000
	}
	if c.MaxURLLen == 0 {
		c.MaxURLLen = 2048
	}
}

// Validate checks the executor configuration.
func (c *ExecutorConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("retry_base_delay must be non-negative")
	}
	if c.HealthCacheTTL < 0 {
		return fmt.Errorf("health_cache_ttl must be non-negative")
	}
	return nil
}
