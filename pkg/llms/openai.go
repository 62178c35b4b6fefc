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

const openAIDefaultBaseURL = "https://api.openai.com"

// OpenAIClient talks to the chat completions API. Structured output uses
// response_format json_schema in strict mode; without a schema it falls
// back to json_object. The base URL override also fits OpenAI-compatible
// local servers.
type OpenAIClient struct {
	cfg        *config.LLMProviderConfig
	httpClient *httpclient.Client
	baseURL    string
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []openAIContentPart
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openAIJSONSchema `json:"json_schema,omitempty"`
}

type openAIJSONSchema struct {
	Name   string                 `json:"name"`
	Schema map[string]interface{} `json:"schema"`
	Strict bool                   `json:"strict"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func NewOpenAIClient(cfg *config.LLMProviderConfig) (*OpenAIClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for OpenAI")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}

	return &OpenAIClient{
		cfg:        cfg,
		httpClient: newHTTPClient(cfg, httpclient.ParseOpenAIHeaders),
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (c *OpenAIClient) ModelName() string {
	return c.cfg.Model
}

func (c *OpenAIClient) Close() error {
	return nil
}

func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, structured *StructuredOutput) (string, int, error) {
	ctx, finish := startSpan(ctx, "openai", c.cfg.Model, structured != nil)

	req := c.buildRequest(messages, structured)

	response, err := c.makeRequest(ctx, req)
	if err != nil {
		finish(0, 0, err)
		return "", 0, err
	}

	if response.Error != nil {
		apiErr := fmt.Errorf("OpenAI API error: %s", response.Error.Message)
		finish(0, 0, apiErr)
		return "", 0, apiErr
	}

	if len(response.Choices) == 0 {
		emptyErr := fmt.Errorf("OpenAI API returned no choices")
		finish(0, 0, emptyErr)
		return "", 0, emptyErr
	}

	finish(response.Usage.PromptTokens, response.Usage.CompletionTokens, nil)
	return response.Choices[0].Message.Content, response.Usage.TotalTokens, nil
}

func (c *OpenAIClient) buildRequest(messages []Message, structured *StructuredOutput) openAIRequest {
	openAIMessages := make([]openAIMessage, 0, len(messages))

	for _, msg := range messages {
		role := string(msg.Role)

		if len(msg.Images) == 0 {
			openAIMessages = append(openAIMessages, openAIMessage{Role: role, Content: msg.Content})
			continue
		}

		parts := make([]openAIContentPart, 0, 1+len(msg.Images))
		if msg.Content != "" {
			parts = append(parts, openAIContentPart{Type: "text", Text: msg.Content})
		}
		for _, img := range msg.Images {
			dataURI := fmt.Sprintf("data:%s;base64,%s",
				detectImageMediaType(img), base64.StdEncoding.EncodeToString(img))
			parts = append(parts, openAIContentPart{
				Type:     "image_url",
				ImageURL: &openAIImageURL{URL: dataURI},
			})
		}
		openAIMessages = append(openAIMessages, openAIMessage{Role: role, Content: parts})
	}

	temperature := 0.0
	if c.cfg.Temperature != nil {
		temperature = *c.cfg.Temperature
	}

	req := openAIRequest{
		Model:       c.cfg.Model,
		Messages:    openAIMessages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: temperature,
	}

	if structured != nil {
		if structured.Schema != nil {
			req.ResponseFormat = &openAIResponseFormat{
				Type: "json_schema",
				JSONSchema: &openAIJSONSchema{
					Name:   "response",
					Schema: structured.Schema,
					Strict: true,
				},
			}
		} else {
			req.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
		}
	}

	return req
}

func (c *OpenAIClient) makeRequest(ctx context.Context, request openAIRequest) (*openAIResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(jsonData)), nil
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

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

	var response openAIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response, nil
}
