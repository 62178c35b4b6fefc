package config

import (
	"fmt"
	"time"
)

// SnapshotConfig configures the snapshot engine.
//
// Note on zero values: the loader applies SetDefaults, so a YAML file that
// omits a field gets the documented default. Code that constructs a
// SnapshotConfig directly (tests, embedded use) gets literal semantics:
// CacheTTL=0 disables caching and MaxElements=0 yields empty snapshots.
type SnapshotConfig struct {
	// CacheTTL is the snapshot cache time-to-live. 0 forces a fresh
	// snapshot on every call.
	// Default: 2s
	CacheTTL time.Duration `yaml:"cache_ttl,omitempty" json:"cache_ttl,omitempty" jsonschema:"title=Cache TTL,description=Snapshot cache time-to-live"`

	// MaxElements caps elements per snapshot; extraction truncates in
	// traversal order beyond it.
	// Default: 100
	MaxElements int `yaml:"max_elements,omitempty" json:"max_elements,omitempty" jsonschema:"title=Max Elements,description=Cap on elements per snapshot,default=100"`

	// MaxTextLen truncates element names and values, with a trailing
	// ellipsis.
	// Default: 200
	MaxTextLen int `yaml:"max_text_len,omitempty" json:"max_text_len,omitempty" jsonschema:"title=Max Text Length,description=Truncation for element names and values,default=200"`

	// FallbackFloor triggers the DOM-query fallback when the accessibility
	// tree yields fewer interactive elements than this.
	// Default: 20
	FallbackFloor int `yaml:"fallback_floor,omitempty" json:"fallback_floor,omitempty" jsonschema:"title=Fallback Floor,description=Minimum tree elements before DOM fallback,default=20"`

	// FallbackSelectors override the default selector set used by the
	// fallback query.
	FallbackSelectors []string `yaml:"fallback_selectors,omitempty" json:"fallback_selectors,omitempty" jsonschema:"title=Fallback Selectors"`

	// ExtraRoles extends the interactive-role allowlist.
	ExtraRoles []string `yaml:"extra_roles,omitempty" json:"extra_roles,omitempty" jsonschema:"title=Extra Roles,description=Additional roles kept from the accessibility tree"`

	// MaxCachedURLs bounds the cache LRU-style.
	// Default: 8
	MaxCachedURLs int `yaml:"max_cached_urls,omitempty" json:"max_cached_urls,omitempty" jsonschema:"title=Max Cached URLs,default=8"`

	// Timeout bounds one snapshot extraction.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,description=Snapshot extraction timeout"`
}

// SetDefaults applies default values to SnapshotConfig.
func (c *SnapshotConfig) SetDefaults() {
	if c.CacheTTL == 0 {
		c.CacheTTL = 2 * time.Second
	}
	if c.MaxElements == 0 {
		c.MaxElements = 100
	}
	if c.MaxTextLen == 0 {
		c.MaxTextLen = 200
	}
	if c.FallbackFloor == 0 {
		c.FallbackFloor = 20
	}
	if c.MaxCachedURLs == 0 {
		c.MaxCachedURLs = 8
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// Validate checks the snapshot configuration.
func (c *SnapshotConfig) Validate() error {
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must be non-negative")
	}
	if c.MaxElements < 0 {
		return fmt.Errorf("max_elements must be non-negative")
	}
	if c.MaxTextLen < 0 {
		return fmt.Errorf("max_text_len must be non-negative")
	}
	if c.FallbackFloor < 0 {
		return fmt.Errorf("fallback_floor must be non-negative")
	}
	return nil
}
