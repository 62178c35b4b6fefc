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

// Package config defines the configuration surface of argus.
//
// Configuration is YAML-first and flows through a fixed pipeline:
// provider → parse → env expansion → decode → defaults → validation.
// Every section lives here so that the whole surface can be exported as
// one JSON schema and validated in one pass.
package config

import (
	"fmt"

	"github.com/kadirpekel/argus/pkg/observability"
)

// Config is the root configuration.
type Config struct {
	// Version of the config format.
	Version string `yaml:"version,omitempty" json:"version,omitempty" jsonschema:"title=Version,description=Config format version"`

	// Name labels this deployment in logs and metrics.
	Name string `yaml:"name,omitempty" json:"name,omitempty" jsonschema:"title=Name,description=Deployment name"`

	// Global holds cross-cutting settings (logging, observability).
	Global GlobalSettings `yaml:"global,omitempty" json:"global,omitempty"`

	// Browser configures the Chrome driver.
	Browser BrowserConfig `yaml:"browser,omitempty" json:"browser,omitempty"`

	// Snapshot configures the snapshot engine.
	Snapshot SnapshotConfig `yaml:"snapshot,omitempty" json:"snapshot,omitempty"`

	// Executor configures the action executor.
	Executor ExecutorConfig `yaml:"executor,omitempty" json:"executor,omitempty"`

	// Memory configures the memory manager.
	Memory MemoryConfig `yaml:"memory,omitempty" json:"memory,omitempty"`

	// Agent configures the step loop.
	Agent AgentConfig `yaml:"agent,omitempty" json:"agent,omitempty"`

	// LLMs holds named LLM provider configurations.
	LLMs map[string]*LLMProviderConfig `yaml:"llms,omitempty" json:"llms,omitempty"`

	// Embedders holds named embedder configurations.
	Embedders map[string]*EmbedderProviderConfig `yaml:"embedders,omitempty" json:"embedders,omitempty"`

	// Vectors holds named vector store configurations.
	Vectors map[string]*VectorProviderConfig `yaml:"vectors,omitempty" json:"vectors,omitempty"`

	// Databases holds named SQL database configurations.
	Databases map[string]*DatabaseConfig `yaml:"databases,omitempty" json:"databases,omitempty"`

	// Store configures episode and skill persistence.
	Store StoreConfig `yaml:"store,omitempty" json:"store,omitempty"`

	// Knowledge configures semantic-memory seeding.
	Knowledge KnowledgeConfig `yaml:"knowledge,omitempty" json:"knowledge,omitempty"`

	// Server configures the HTTP and MCP surfaces.
	Server ServerConfig `yaml:"server,omitempty" json:"server,omitempty"`
}

// GlobalSettings holds cross-cutting settings.
type GlobalSettings struct {
	// Logger configures logging behavior.
	Logger LoggerConfig `yaml:"logger,omitempty" json:"logger,omitempty"`

	// Observability configures tracing and metrics export.
	Observability observability.Config `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// SetDefaults applies default values to GlobalSettings.
func (c *GlobalSettings) SetDefaults() {
	c.Logger.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks GlobalSettings.
func (c *GlobalSettings) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger config validation failed: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability config validation failed: %w", err)
	}
	return nil
}

// SetDefaults applies default values to the whole configuration.
func (c *Config) SetDefaults() {
	c.Global.SetDefaults()
	c.Browser.SetDefaults()
	c.Snapshot.SetDefaults()
	c.Executor.SetDefaults()
	c.Memory.SetDefaults()
	c.Agent.SetDefaults()

	for _, llm := range c.LLMs {
		llm.SetDefaults()
	}
	for _, e := range c.Embedders {
		e.SetDefaults()
	}
	for _, v := range c.Vectors {
		v.SetDefaults()
	}
	for _, db := range c.Databases {
		db.SetDefaults()
	}

	c.Store.SetDefaults()
	c.Knowledge.SetDefaults()
	c.Server.SetDefaults()

	// A configless run still needs one LLM; build it from the environment.
	if len(c.LLMs) == 0 {
		llm := &LLMProviderConfig{}
		llm.SetDefaults()
		c.LLMs = map[string]*LLMProviderConfig{DefaultLLMName: llm}
	}
	if c.Agent.LLM == "" {
		c.Agent.LLM = c.firstLLMName()
	}
}

// Validate checks the whole configuration, including cross-references.
func (c *Config) Validate() error {
	if err := c.Global.Validate(); err != nil {
		return err
	}
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("browser config validation failed: %w", err)
	}
	if err := c.Snapshot.Validate(); err != nil {
		return fmt.Errorf("snapshot config validation failed: %w", err)
	}
	if err := c.Executor.Validate(); err != nil {
		return fmt.Errorf("executor config validation failed: %w", err)
	}
	if err := c.Memory.Validate(); err != nil {
		return fmt.Errorf("memory config validation failed: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent config validation failed: %w", err)
	}

	for name, llm := range c.LLMs {
		if err := llm.Validate(); err != nil {
			return fmt.Errorf("llm %q validation failed: %w", name, err)
		}
	}
	for name, e := range c.Embedders {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("embedder %q validation failed: %w", name, err)
		}
	}
	for name, v := range c.Vectors {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("vector %q validation failed: %w", name, err)
		}
	}
	for name, db := range c.Databases {
		if err := db.Validate(); err != nil {
			return fmt.Errorf("database %q validation failed: %w", name, err)
		}
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config validation failed: %w", err)
	}
	if err := c.Knowledge.Validate(); err != nil {
		return fmt.Errorf("knowledge config validation failed: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}

	return c.validateReferences()
}

// validateReferences checks that every by-name reference resolves.
func (c *Config) validateReferences() error {
	if c.Agent.LLM != "" {
		if _, ok := c.LLMs[c.Agent.LLM]; !ok {
			return fmt.Errorf("agent references unknown llm %q (defined: %v)", c.Agent.LLM, mapKeys(c.LLMs))
		}
	}
	if c.Store.Backend == StoreBackendSQL && c.Store.Database != "" {
		if _, ok := c.Databases[c.Store.Database]; !ok {
			return fmt.Errorf("store references unknown database %q (defined: %v)", c.Store.Database, mapKeys(c.Databases))
		}
	}
	if c.Memory.Recall.Enabled {
		if _, ok := c.Embedders[c.Memory.Recall.Embedder]; !ok {
			return fmt.Errorf("memory recall references unknown embedder %q (defined: %v)", c.Memory.Recall.Embedder, mapKeys(c.Embedders))
		}
		if _, ok := c.Vectors[c.Memory.Recall.Vector]; !ok {
			return fmt.Errorf("memory recall references unknown vector store %q (defined: %v)", c.Memory.Recall.Vector, mapKeys(c.Vectors))
		}
	}
	if len(c.Knowledge.Sources) > 0 {
		if c.Knowledge.Embedder != "" {
			if _, ok := c.Embedders[c.Knowledge.Embedder]; !ok {
				return fmt.Errorf("knowledge references unknown embedder %q (defined: %v)", c.Knowledge.Embedder, mapKeys(c.Embedders))
			}
		}
		if c.Knowledge.Vector != "" {
			if _, ok := c.Vectors[c.Knowledge.Vector]; !ok {
				return fmt.Errorf("knowledge references unknown vector store %q (defined: %v)", c.Knowledge.Vector, mapKeys(c.Vectors))
			}
		}
	}
	return nil
}

// GetLLM returns the named LLM provider config.
func (c *Config) GetLLM(name string) (*LLMProviderConfig, bool) {
	llm, ok := c.LLMs[name]
	return llm, ok
}

// AgentLLM returns the step loop's LLM provider config.
func (c *Config) AgentLLM() (*LLMProviderConfig, error) {
	name := c.Agent.LLM
	if name == "" {
		name = c.firstLLMName()
	}
	llm, ok := c.LLMs[name]
	if !ok {
		return nil, fmt.Errorf("llm %q not found in configuration", name)
	}
	return llm, nil
}

func (c *Config) firstLLMName() string {
	if _, ok := c.LLMs[DefaultLLMName]; ok {
		return DefaultLLMName
	}
	for name := range c.LLMs {
		return name
	}
	return ""
}

func mapKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}
