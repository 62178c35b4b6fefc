package vector

import (
	"context"
	"fmt"

	"github.com/kadirpekel/argus/pkg/embedders"
	"github.com/kadirpekel/argus/pkg/memory"
)

const defaultRecallCollection = "memory"

// Recaller indexes memory texts and recalls them by similarity, gluing an
// embedder to a vector provider behind the memory manager's interface.
type Recaller struct {
	provider   Provider
	embedder   embedders.Embedder
	collection string
}

// NewRecaller creates a recaller over the given provider and embedder. An
// empty collection name falls back to "memory".
func NewRecaller(provider Provider, embedder embedders.Embedder, collection string) (*Recaller, error) {
	if provider == nil {
		return nil, fmt.Errorf("vector provider is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if collection == "" {
		collection = defaultRecallCollection
	}

	return &Recaller{
		provider:   provider,
		embedder:   embedder,
		collection: collection,
	}, nil
}

// Index embeds text and stores it under id. The text rides along as
// content metadata so stored entries stay inspectable.
func (r *Recaller) Index(ctx context.Context, id, text string, metadata map[string]interface{}) error {
	vector, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed text for %s: %w", id, err)
	}

	merged := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		merged[k] = v
	}
	merged["content"] = text

	return r.provider.Upsert(ctx, r.collection, id, vector, merged)
}

// Recall embeds the query and returns the closest indexed entries.
func (r *Recaller) Recall(ctx context.Context, query string, limit int) ([]memory.RecallHit, error) {
	if limit <= 0 {
		return nil, nil
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.provider.Search(ctx, r.collection, vector, limit)
	if err != nil {
		return nil, err
	}

	hits := make([]memory.RecallHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, memory.RecallHit{ID: res.ID, Score: float64(res.Score)})
	}

	return hits, nil
}

var _ memory.Recaller = (*Recaller)(nil)
