// Package embedders produces the vectors behind semantic recall: openai
// and ollama embedding providers behind a single Embedder interface. The
// vector package pairs one with a store to index and search memory.
package embedders

import (
	"context"
	"fmt"

	"github.com/kadirpekel/argus/pkg/config"
)

// Embedder converts text into vectors for similarity search.
type Embedder interface {
	// Embed converts one text into a vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts several texts, in one round trip where the
	// provider supports it.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the width of the vectors this embedder produces.
	Dimension() int

	// Model returns the model name in use.
	Model() string

	// Close releases any held resources.
	Close() error
}

// New creates an embedder from config. Defaults are applied, so a zero
// config with an API key in the environment yields a working openai
// embedder.
func New(cfg *config.EmbedderProviderConfig) (Embedder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("embedder config cannot be nil")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedder config: %w", err)
	}

	switch cfg.Provider {
	case config.EmbedderProviderOpenAI:
		return NewOpenAIEmbedder(cfg)
	case config.EmbedderProviderOllama:
		return NewOllamaEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedder provider: %s (supported: openai, ollama)", cfg.Provider)
	}
}
