// Copyright 2026 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package vector stores and searches memory embeddings. The chromem
// provider is the embedded default and needs no external services; qdrant
// and pinecone back server and managed deployments. A Recaller pairs any
// provider with an embedder to serve the memory manager's recall surface.
package vector

import (
	"context"
	"fmt"

	"github.com/kadirpekel/argus/pkg/config"
	"github.com/kadirpekel/argus/pkg/registry"
)

// Result is one similarity match.
type Result struct {
	// ID of the stored document.
	ID string

	// Score is the similarity to the query vector, higher is closer.
	Score float32

	// Content is the indexed text, when the store carries it.
	Content string

	// Metadata stored alongside the vector.
	Metadata map[string]any
}

// Provider is a vector store. Vectors are computed externally by an
// embedder; providers only index and search them.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Upsert adds or replaces a document by ID.
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error

	// Search returns the topK most similar documents.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)

	// SearchWithFilter combines similarity with exact metadata matching.
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error)

	// Delete removes a document by ID.
	Delete(ctx context.Context, collection string, id string) error

	// DeleteByFilter removes all documents matching the filter.
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error

	// CreateCollection ensures a collection exists with the given
	// vector dimension.
	CreateCollection(ctx context.Context, collection string, vectorDimension int) error

	// DeleteCollection removes a collection and all its documents.
	DeleteCollection(ctx context.Context, collection string) error

	// Close flushes and releases resources.
	Close() error
}

// New creates a provider from config.
func New(cfg *config.VectorProviderConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("vector config cannot be nil")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid vector config: %w", err)
	}

	switch cfg.Provider {
	case config.VectorProviderChromem:
		return NewChromemProvider(cfg.Chromem)
	case config.VectorProviderQdrant:
		return NewQdrantProvider(cfg.Qdrant)
	case config.VectorProviderPinecone:
		return NewPineconeProvider(cfg.Pinecone)
	default:
		return nil, fmt.Errorf("unsupported vector provider: %s (supported: chromem, qdrant, pinecone)", cfg.Provider)
	}
}

// ProviderRegistry holds named providers for setups that configure more
// than one.
type ProviderRegistry struct {
	*registry.BaseRegistry[Provider]
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		BaseRegistry: registry.NewBaseRegistry[Provider](),
	}
}

func (r *ProviderRegistry) RegisterProvider(name string, provider Provider) error {
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if provider == nil {
		return fmt.Errorf("provider cannot be nil")
	}
	return r.Register(name, provider)
}

// CreateFromConfig builds a provider and registers it under name.
func (r *ProviderRegistry) CreateFromConfig(name string, cfg *config.VectorProviderConfig) (Provider, error) {
	if name == "" {
		return nil, fmt.Errorf("provider name cannot be empty")
	}

	provider, err := New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector provider: %w", err)
	}

	if err := r.RegisterProvider(name, provider); err != nil {
		return nil, fmt.Errorf("failed to register vector provider: %w", err)
	}

	return provider, nil
}
