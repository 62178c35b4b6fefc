// Package testutils provides testing utilities for the argus agent core.
package testutils

import (
	"context"
	"time"

	"github.com/kadirpekel/argus/pkg/config"
)

// TestConfig returns a minimal valid configuration for testing
func TestConfig() *config.Config {
	cfg := &config.Config{
		Name: "test",
		LLMs: map[string]*config.LLMProviderConfig{
			"test-llm": {
				Provider: config.LLMProviderOllama,
				Model:    "llama3.2",
			},
		},
		Agent: config.AgentConfig{
			LLM: "test-llm",
		},
	}
	cfg.SetDefaults()
	return cfg
}

// TestSnapshotConfig returns a snapshot configuration for testing.
// Caching and the DOM fallback are disabled so tests control freshness and
// extraction paths explicitly.
func TestSnapshotConfig() *config.SnapshotConfig {
	return &config.SnapshotConfig{
		CacheTTL:      0,
		MaxElements:   100,
		MaxTextLen:    200,
		FallbackFloor: 0,
		MaxCachedURLs: 8,
	}
}

// TestContext returns a context with timeout for testing
func TestContext() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	// Note: We don't call cancel here because this is a test utility
	// that returns a context for immediate use. The context will be
	// automatically cancelled when the timeout expires.
	_ = cancel // Explicitly ignore to satisfy linter
	return ctx
}

// TestContextWithTimeout returns a context with custom timeout for testing
func TestContextWithTimeout(timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	// Note: We don't call cancel here because this is a test utility
	// that returns a context for immediate use. The context will be
	// automatically cancelled when the timeout expires.
	_ = cancel // Explicitly ignore to satisfy linter
	return ctx
}
