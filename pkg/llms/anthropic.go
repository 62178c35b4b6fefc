package llms

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kadirpekel/argus/pkg/config"
	"github.com/kadirpekel/argus/pkg/httpclient"
)

const anthropicDefaultBaseURL = "https://api.anthropic.com"

// AnthropicClient talks to the Anthropic messages API. Structured output is
// steered with a schema prompt in the system turn plus an assistant prefill,
// which the API echoes back at the start of the response.
type AnthropicClient struct {
	cfg        *config.LLMProviderConfig
	httpClient *httpclient.Client
	baseURL    string
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
}

type anthropicMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []anthropicContent
}

type anthropicContent struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewAnthropicClient(cfg *config.LLMProviderConfig) (*AnthropicClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Anthropic")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}

	return &AnthropicClient{
		cfg:        cfg,
		httpClient: newHTTPClient(cfg, httpclient.ParseAnthropicHeaders),
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (c *AnthropicClient) ModelName() string {
	return c.cfg.Model
}

func (c *AnthropicClient) Close() error {
	return nil
}

func (c *AnthropicClient) Complete(ctx context.Context, messages []Message, structured *StructuredOutput) (string, int, error) {
	ctx, finish := startSpan(ctx, "anthropic", c.cfg.Model, structured != nil)

	req := c.buildRequest(messages, structured)
	prefill := requestPrefill(req)

	response, err := c.makeRequest(ctx, req)
	if err != nil {
		finish(0, 0, err)
		return "", 0, err
	}

	if response.Error != nil {
		apiErr := fmt.Errorf("anthropic API error: %s (type: %s)", response.Error.Message, response.Error.Type)
		finish(0, 0, apiErr)
		return "", 0, apiErr
	}

	var text string
	for _, content := range response.Content {
		if content.Type == "text" {
			text += content.Text
		}
	}

	// Prefilled assistant text is not echoed in the response body.
	if prefill != "" {
		text = prefill + text
	}

	finish(response.Usage.InputTokens, response.Usage.OutputTokens, nil)
	return text, response.Usage.InputTokens + response.Usage.OutputTokens, nil
}

func (c *AnthropicClient) buildRequest(messages []Message, structured *StructuredOutput) anthropicRequest {
	var systemParts []string
	anthropicMessages := make([]anthropicMessage, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			if msg.Content != "" {
				systemParts = append(systemParts, msg.Content)
			}
		case RoleAssistant:
			anthropicMessages = append(anthropicMessages, anthropicMessage{
				Role:    "assistant",
				Content: []anthropicContent{{Type: "text", Text: msg.Content}},
			})
		default:
			anthropicMessages = append(anthropicMessages, anthropicMessage{
				Role:    "user",
				Content: userContent(msg),
			})
		}
	}

	if structured != nil {
		if instruction := schemaInstruction(structured.Schema); instruction != "" {
			systemParts = append(systemParts, instruction)
		}

		prefill := structured.Prefill
		if prefill == "" {
			prefill = "{"
		}
		anthropicMessages = append(anthropicMessages, anthropicMessage{
			Role:    "assistant",
			Content: prefill,
		})
	}

	temperature := 0.0
	if c.cfg.Temperature != nil {
		temperature = *c.cfg.Temperature
	}

	return anthropicRequest{
		Model:       c.cfg.Model,
		Messages:    anthropicMessages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: temperature,
		System:      strings.Join(systemParts, "\n\n"),
	}
}

// userContent builds the content blocks for a user turn, text first and
// then any attached images as base64 blocks.
func userContent(msg Message) []anthropicContent {
	contents := make([]anthropicContent, 0, 1+len(msg.Images))
	if msg.Content != "" {
		contents = append(contents, anthropicContent{Type: "text", Text: msg.Content})
	}
	for _, img := range msg.Images {
		contents = append(contents, anthropicContent{
			Type: "image",
			Source: &anthropicImageSource{
				Type:      "base64",
				MediaType: detectImageMediaType(img),
				Data:      base64.StdEncoding.EncodeToString(img),
			},
		})
	}
	return contents
}

// requestPrefill returns the prefill text when the final message is a
// string-content assistant turn.
func requestPrefill(req anthropicRequest) string {
	if len(req.Messages) == 0 {
		return ""
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "assistant" {
		return ""
	}
	if content, ok := last.Content.(string); ok {
		return content
	}
	return ""
}

func (c *AnthropicClient) makeRequest(ctx context.Context, request anthropicRequest) (*anthropicResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(jsonData)), nil
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response, nil
}
