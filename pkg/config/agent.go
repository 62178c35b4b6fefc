package config

import "fmt"

// AgentConfig configures the step loop.
type AgentConfig struct {
	// LLM references an entry in the llms section. Empty selects the
	// single configured provider.
	LLM string `yaml:"llm,omitempty" json:"llm,omitempty" jsonschema:"title=LLM,description=Named LLM provider for planning"`

	// MaxSteps caps loop iterations per goal.
	// Default: 20
	MaxSteps int `yaml:"max_steps,omitempty" json:"max_steps,omitempty" jsonschema:"title=Max Steps,description=Step loop iteration cap,default=20"`

	// MaxPermanentFailures is the consecutive permanent-failure count that
	// terminates the run as fatal.
	// Default: 3
	MaxPermanentFailures int `yaml:"max_permanent_failures,omitempty" json:"max_permanent_failures,omitempty" jsonschema:"title=Max Permanent Failures,description=Consecutive permanent errors before fatal exit,default=3"`

	// MaxGoalLen bounds the goal string.
	// Default: 4096
	MaxGoalLen int `yaml:"max_goal_len,omitempty" json:"max_goal_len,omitempty" jsonschema:"title=Max Goal Length,default=4096"`

	// SystemPrompt overrides the built-in planning prompt.
	SystemPrompt string `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty" jsonschema:"title=System Prompt,description=Override for the planning system prompt"`
}

// SetDefaults applies default values to AgentConfig.
func (c *AgentConfig) SetDefaults() {
	if c.MaxSteps == 0 {
		c.MaxSteps = 20
	}
	if c.MaxPermanentFailures == 0 {
		c.MaxPermanentFailures = 3
	}
	if c.MaxGoalLen == 0 {
		c.MaxGoalLen = 4096
	}
}

// Validate checks the agent configuration.
func (c *AgentConfig) Validate() error {
	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}
	if c.MaxPermanentFailures < 0 {
		return fmt.Errorf("max_permanent_failures must be non-negative")
	}
	return nil
}
