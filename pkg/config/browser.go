package config

import (
	"fmt"
	"time"
)

// BrowserConfig configures the Chrome driver.
type BrowserConfig struct {
	// Headless runs Chrome without a visible window.
	// Default: true
	Headless *bool `yaml:"headless,omitempty" json:"headless,omitempty" jsonschema:"title=Headless,description=Run Chrome headless,default=true"`

	// ExecPath overrides Chrome binary discovery.
	ExecPath string `yaml:"exec_path,omitempty" json:"exec_path,omitempty" jsonschema:"title=Exec Path,description=Path to Chrome binary"`

	// WindowWidth and WindowHeight set the viewport.
	// Default: 1280x1024
	WindowWidth  int `yaml:"window_width,omitempty" json:"window_width,omitempty" jsonschema:"title=Window Width,minimum=1,default=1280"`
	WindowHeight int `yaml:"window_height,omitempty" json:"window_height,omitempty" jsonschema:"title=Window Height,minimum=1,default=1024"`

	// UserAgent overrides the default user agent.
	UserAgent string `yaml:"user_agent,omitempty" json:"user_agent,omitempty" jsonschema:"title=User Agent"`

	// DefaultTimeout bounds driver calls whose context carries no deadline.
	// Default: 10s
	DefaultTimeout time.Duration `yaml:"default_timeout,omitempty" json:"default_timeout,omitempty" jsonschema:"title=Default Timeout,description=Fallback per-operation timeout"`
}

// SetDefaults applies default values to BrowserConfig.
func (c *BrowserConfig) SetDefaults() {
	if c.Headless == nil {
		c.Headless = BoolPtr(true)
	}
	if c.WindowWidth == 0 {
		c.WindowWidth = 1280
	}
	if c.WindowHeight == 0 {
		c.WindowHeight = 1024
	}
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = 10 * time.Second
	}
}

// Validate checks the browser configuration.
func (c *BrowserConfig) Validate() error {
	if c.WindowWidth < 0 || c.WindowHeight < 0 {
		return fmt.Errorf("window dimensions must be positive")
	}
	if c.DefaultTimeout < 0 {
		return fmt.Errorf("default_timeout must be non-negative")
	}
	return nil
}

// IsHeadless returns whether Chrome runs headless.
func (c *BrowserConfig) IsHeadless() bool {
	if c.Headless == nil {
		return true
	}
	return *c.Headless
}
