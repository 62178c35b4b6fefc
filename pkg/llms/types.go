// Package llms provides the completion clients the planner runs on:
// anthropic, openai, gemini, and ollama, behind a single LLMClient
// interface. One completion per step; no streaming, no tool calling.
package llms

import (
	"context"
	"fmt"

	"github.com/kadirpekel/argus/pkg/config"
	"github.com/kadirpekel/argus/pkg/registry"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn. Images carry raw screenshot bytes; each
// provider encodes them for its own wire format.
type Message struct {
	Role    Role
	Content string
	Images  [][]byte
}

// SystemMessage builds a system-role message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage builds a user-role message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// UserMessageWithImages builds a user-role message with attached images.
func UserMessageWithImages(text string, images ...[]byte) Message {
	return Message{Role: RoleUser, Content: text, Images: images}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// StructuredOutput steers the completion toward schema-shaped JSON using
// each provider's native mechanism: response_format for openai, format for
// ollama, response schema for gemini, schema prompt plus prefill for
// anthropic.
type StructuredOutput struct {
	// Schema is a JSON schema for the expected response object.
	Schema map[string]interface{}

	// Prefill seeds the assistant turn for providers that support it.
	// Empty means "{" when a schema is set.
	Prefill string
}

// LLMClient is the single-turn completion interface the step loop consumes.
// structured may be nil for plain text output. Returns the response text
// and the total tokens used.
type LLMClient interface {
	Complete(ctx context.Context, messages []Message, structured *StructuredOutput) (string, int, error)
	ModelName() string
	Close() error
}

// New creates a client from config.
func New(cfg *config.LLMProviderConfig) (LLMClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("LLM config cannot be nil")
	}

	switch cfg.Provider {
	case config.LLMProviderOpenAI:
		return NewOpenAIClient(cfg)
	case config.LLMProviderAnthropic:
		return NewAnthropicClient(cfg)
	case config.LLMProviderGemini:
		return NewGeminiClient(cfg)
	case config.LLMProviderOllama:
		return NewOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (supported: anthropic, openai, gemini, ollama)", cfg.Provider)
	}
}

// LLMRegistry holds named clients for setups that configure more than one.
type LLMRegistry struct {
	*registry.BaseRegistry[LLMClient]
}

func NewLLMRegistry() *LLMRegistry {
	return &LLMRegistry{
		BaseRegistry: registry.NewBaseRegistry[LLMClient](),
	}
}

func (r *LLMRegistry) RegisterLLM(name string, client LLMClient) error {
	if name == "" {
		return fmt.Errorf("LLM name cannot be empty")
	}
	if client == nil {
		return fmt.Errorf("LLM client cannot be nil")
	}
	return r.Register(name, client)
}

// CreateFromConfig builds a client and registers it under name.
func (r *LLMRegistry) CreateFromConfig(name string, cfg *config.LLMProviderConfig) (LLMClient, error) {
	if name == "" {
		return nil, fmt.Errorf("LLM name cannot be empty")
	}

	client, err := New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	if err := r.RegisterLLM(name, client); err != nil {
		return nil, fmt.Errorf("failed to register LLM: %w", err)
	}

	return client, nil
}

func (r *LLMRegistry) GetLLM(name string) (LLMClient, error) {
	client, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("LLM client '%s' not found", name)
	}
	return client, nil
}

// Close closes every registered client, returning the first error.
func (r *LLMRegistry) Close() error {
	var firstErr error
	for _, client := range r.List() {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
