package config

import "fmt"

// MemoryConfig configures the memory manager.
type MemoryConfig struct {
	// WorkingMemoryCap is the maximum number of step records kept in full.
	// Default: 50
	WorkingMemoryCap int `yaml:"working_memory_cap,omitempty" json:"working_memory_cap,omitempty" jsonschema:"title=Working Memory Cap,description=Max step records kept in full,default=50"`

	// PreserveRecent is the tail kept verbatim during compaction.
	// Default: 10
	PreserveRecent int `yaml:"preserve_recent,omitempty" json:"preserve_recent,omitempty" jsonschema:"title=Preserve Recent,description=Verbatim tail during compaction,default=10"`

	// CompactThreshold is the working-memory entry count that triggers
	// compaction (full records plus summaries).
	// Default: 80
	CompactThreshold int `yaml:"compact_threshold,omitempty" json:"compact_threshold,omitempty" jsonschema:"title=Compact Threshold,description=Entry count triggering compaction,default=80"`

	// LastNScreenshots is the single screenshot-retention policy; older
	// image payloads are stripped in place.
	// Default: 1
	LastNScreenshots *int `yaml:"last_n_screenshots,omitempty" json:"last_n_screenshots,omitempty" jsonschema:"title=Last N Screenshots,description=Screenshot payloads retained,default=1"`

	// TokenBudget is the prompt size ceiling.
	// Default: 8000
	TokenBudget int `yaml:"token_budget,omitempty" json:"token_budget,omitempty" jsonschema:"title=Token Budget,description=Prompt size ceiling,default=8000"`

	// TopK is the number of snippets returned per persistent tier when
	// enriching context.
	// Default: 3
	TopK int `yaml:"top_k,omitempty" json:"top_k,omitempty" jsonschema:"title=Top K,description=Snippets per tier in enriched context,default=3"`

	// Estimator selects the token estimator: "heuristic" or "tiktoken".
	// Default: heuristic
	Estimator string `yaml:"estimator,omitempty" json:"estimator,omitempty" jsonschema:"title=Estimator,enum=heuristic,enum=tiktoken,default=heuristic"`

	// EstimatorModel is the model name used by the tiktoken estimator.
	EstimatorModel string `yaml:"estimator_model,omitempty" json:"estimator_model,omitempty" jsonschema:"title=Estimator Model"`

	// Recall configures optional vector-backed recall over the persistent
	// tiers.
	Recall RecallConfig `yaml:"recall,omitempty" json:"recall,omitempty"`
}

// RecallConfig configures vector-backed memory recall.
type RecallConfig struct {
	// Enabled turns on embedding-based recall; the lexical ranker remains
	// the fallback.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,default=false"`

	// Embedder references an embedder from the embedders section.
	Embedder string `yaml:"embedder,omitempty" json:"embedder,omitempty" jsonschema:"title=Embedder"`

	// Vector references a vector store from the vectors section.
	Vector string `yaml:"vector,omitempty" json:"vector,omitempty" jsonschema:"title=Vector Store"`

	// Collection is the vector collection name.
	// Default: argus-memory
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty" jsonschema:"title=Collection,default=argus-memory"`
}

// SetDefaults applies default values to MemoryConfig.
func (c *MemoryConfig) SetDefaults() {
	if c.WorkingMemoryCap == 0 {
		c.WorkingMemoryCap = 50
	}
	if c.PreserveRecent == 0 {
		c.PreserveRecent = 10
	}
	if c.CompactThreshold == 0 {
		c.CompactThreshold = 80
	}
	if c.LastNScreenshots == nil {
		n := 1
		c.LastNScreenshots = &n
	}
	if c.TokenBudget == 0 {
		c.TokenBudget = 8000
	}
	if c.TopK == 0 {
		c.TopK = 3
	}
	if c.Estimator == "" {
		c.Estimator = "heuristic"
	}
	if c.Recall.Enabled && c.Recall.Collection == "" {
		c.Recall.Collection = "argus-memory"
	}
}

// Validate checks the memory configuration.
func (c *MemoryConfig) Validate() error {
	if c.WorkingMemoryCap < 0 {
		return fmt.Errorf("working_memory_cap must be non-negative")
	}
	if c.PreserveRecent < 0 {
		return fmt.Errorf("preserve_recent must be non-negative")
	}
	if c.PreserveRecent > c.WorkingMemoryCap && c.WorkingMemoryCap > 0 {
		return fmt.Errorf("preserve_recent (%d) cannot exceed working_memory_cap (%d)", c.PreserveRecent, c.WorkingMemoryCap)
	}
	if c.TokenBudget < 0 {
		return fmt.Errorf("token_budget must be non-negative")
	}
	switch c.Estimator {
	case "", "heuristic", "tiktoken":
	default:
		return fmt.Errorf("invalid estimator %q (valid: heuristic, tiktoken)", c.Estimator)
	}
	if c.Recall.Enabled {
		if c.Recall.Embedder == "" {
			return fmt.Errorf("recall.embedder is required when recall is enabled")
		}
		if c.Recall.Vector == "" {
			return fmt.Errorf("recall.vector is required when recall is enabled")
		}
	}
	return nil
}

// ScreenshotRetention returns the LastNScreenshots policy value.
func (c *MemoryConfig) ScreenshotRetention() int {
	if c.LastNScreenshots == nil {
		return 1
	}
	return *c.LastNScreenshots
}
