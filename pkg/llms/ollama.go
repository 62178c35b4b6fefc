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

const ollamaDefaultBaseURL = "http://localhost:11434"

// OllamaClient talks to a local ollama server. Keyless. Structured output
// passes the schema through the format field, which constrains decoding
// server-side; the schema prompt is added too since small local models
// follow it better with both.
type OllamaClient struct {
	cfg        *config.LLMProviderConfig
	httpClient *httpclient.Client
	baseURL    string
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   interface{}     `json:"format,omitempty"` // "json" or a schema object
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // base64, no data URI prefix
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

func NewOllamaClient(cfg *config.LLMProviderConfig) (*OllamaClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = ollamaDefaultBaseURL
	}

	return &OllamaClient{
		cfg:        cfg,
		httpClient: newHTTPClient(cfg, nil),
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (c *OllamaClient) ModelName() string {
	return c.cfg.Model
}

func (c *OllamaClient) Close() error {
	return nil
}

func (c *OllamaClient) Complete(ctx context.Context, messages []Message, structured *StructuredOutput) (string, int, error) {
	ctx, finish := startSpan(ctx, "ollama", c.cfg.Model, structured != nil)

	req := c.buildRequest(messages, structured)

	response, err := c.makeRequest(ctx, req)
	if err != nil {
		finish(0, 0, err)
		return "", 0, err
	}

	if response.Error != "" {
		apiErr := fmt.Errorf("ollama API error: %s", response.Error)
		finish(0, 0, apiErr)
		return "", 0, apiErr
	}

	finish(response.PromptEvalCount, response.EvalCount, nil)
	return response.Message.Content, response.PromptEvalCount + response.EvalCount, nil
}

func (c *OllamaClient) buildRequest(messages []Message, structured *StructuredOutput) ollamaRequest {
	ollamaMessages := make([]ollamaMessage, 0, len(messages)+1)

	if structured != nil {
		if instruction := schemaInstruction(structured.Schema); instruction != "" {
			ollamaMessages = append(ollamaMessages, ollamaMessage{Role: "system", Content: instruction})
		}
	}

	for _, msg := range messages {
		m := ollamaMessage{Role: string(msg.Role), Content: msg.Content}
		for _, img := range msg.Images {
			m.Images = append(m.Images, base64.StdEncoding.EncodeToString(img))
		}
		ollamaMessages = append(ollamaMessages, m)
	}

	req := ollamaRequest{
		Model:    c.cfg.Model,
		Messages: ollamaMessages,
		Stream:   false,
	}

	opts := &ollamaOptions{}
	if c.cfg.Temperature != nil && *c.cfg.Temperature > 0 {
		opts.Temperature = *c.cfg.Temperature
	}
	if c.cfg.MaxTokens > 0 {
		opts.NumPredict = c.cfg.MaxTokens
	}
	if opts.Temperature > 0 || opts.NumPredict > 0 {
		req.Options = opts
	}

	if structured != nil {
		if structured.Schema != nil {
			req.Format = structured.Schema
		} else {
			req.Format = "json"
		}
	}

	return req
}

func (c *OllamaClient) makeRequest(ctx context.Context, request ollamaRequest) (*ollamaResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(jsonData)), nil
	}

	req.Header.Set("Content-Type", "application/json")

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

	var response ollamaResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response, nil
}
