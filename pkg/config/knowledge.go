package config

import "fmt"

// KnowledgeConfig configures semantic-memory seeding from documents.
type KnowledgeConfig struct {
	// Sources are directories to extract knowledge from.
	Sources []KnowledgeSource `yaml:"sources,omitempty" json:"sources,omitempty" jsonschema:"title=Sources"`

	// Embedder references an embedder for vector indexing (optional;
	// without it entries are seeded into semantic memory only).
	Embedder string `yaml:"embedder,omitempty" json:"embedder,omitempty" jsonschema:"title=Embedder"`

	// Vector references a vector store for indexed entries.
	Vector string `yaml:"vector,omitempty" json:"vector,omitempty" jsonschema:"title=Vector Store"`

	// Collection is the vector collection for seeded entries.
	// Default: argus-knowledge
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty" jsonschema:"title=Collection,default=argus-knowledge"`

	// ChunkSize bounds one extracted chunk in characters.
	// Default: 1200
	ChunkSize int `yaml:"chunk_size,omitempty" json:"chunk_size,omitempty" jsonschema:"title=Chunk Size,minimum=1,default=1200"`
}

// KnowledgeSource is one seeding source.
type KnowledgeSource struct {
	// Path is the directory to walk.
	Path string `yaml:"path" json:"path" jsonschema:"title=Path"`

	// Patterns filter files by glob (e.g., "*.pdf"). Empty accepts every
	// supported extension.
	Patterns []string `yaml:"patterns,omitempty" json:"patterns,omitempty" jsonschema:"title=Patterns"`

	// Confidence assigned to entries seeded from this source.
	// Default: 0.8
	Confidence float64 `yaml:"confidence,omitempty" json:"confidence,omitempty" jsonschema:"title=Confidence,minimum=0,maximum=1,default=0.8"`
}

// SetDefaults applies default values to KnowledgeConfig.
func (c *KnowledgeConfig) SetDefaults() {
	if c.Collection == "" {
		c.Collection = "argus-knowledge"
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 1200
	}
	for i := range c.Sources {
		if c.Sources[i].Confidence == 0 {
			c.Sources[i].Confidence = 0.8
		}
	}
}

// Validate checks the knowledge configuration.
func (c *KnowledgeConfig) Validate() error {
	for i, src := range c.Sources {
		if src.Path == "" {
			return fmt.Errorf("sources[%d]: path is required", i)
		}
		if src.Confidence < 0 || src.Confidence > 1 {
			return fmt.Errorf("sources[%d]: confidence must be within [0, 1]", i)
		}
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must be positive")
	}
	return nil
}
