package config

// ZeroConfigOptions carry CLI-level overrides for configless runs.
type ZeroConfigOptions struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Headless *bool
	MaxSteps int
}

// ZeroConfig builds a runnable configuration without a config file.
// The LLM provider is detected from environment API keys unless overridden.
func ZeroConfig(opts ZeroConfigOptions) *Config {
	llm := &LLMProviderConfig{
		Provider: LLMProvider(opts.Provider),
		Model:    opts.Model,
		APIKey:   opts.APIKey,
		BaseURL:  opts.BaseURL,
	}

	cfg := &Config{
		Name: "zero-config",
		LLMs: map[string]*LLMProviderConfig{DefaultLLMName: llm},
	}
	if opts.Headless != nil {
		cfg.Browser.Headless = opts.Headless
	}
	if opts.MaxSteps > 0 {
		cfg.Agent.MaxSteps = opts.MaxSteps
	}
	cfg.Agent.LLM = DefaultLLMName

	cfg.SetDefaults()
	return cfg
}
