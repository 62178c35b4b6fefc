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

package llms

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/kadirpekel/argus/pkg/config"
)

// GeminiClient talks to the Gemini API through the official genai SDK.
// Structured output uses the response schema plus an application/json
// response MIME type, which constrains decoding model-side.
type GeminiClient struct {
	cfg    *config.LLMProviderConfig
	client *genai.Client
}

func NewGeminiClient(cfg *config.LLMProviderConfig) (*GeminiClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Gemini")
	}

	// Constructors shouldn't require a context; the SDK only uses it for
	// credential discovery, which an explicit API key skips.
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{cfg: cfg, client: client}, nil
}

func (c *GeminiClient) ModelName() string {
	return c.cfg.Model
}

func (c *GeminiClient) Close() error {
	return nil
}

func (c *GeminiClient) Complete(ctx context.Context, messages []Message, structured *StructuredOutput) (string, int, error) {
	ctx, finish := startSpan(ctx, "gemini", c.cfg.Model, structured != nil)

	contents, genConfig := c.buildRequest(messages, structured)

	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, genConfig)
	if err != nil {
		genErr := fmt.Errorf("Gemini generation failed: %w", err)
		finish(0, 0, genErr)
		return "", 0, genErr
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		emptyErr := fmt.Errorf("empty response from Gemini")
		finish(0, 0, emptyErr)
		return "", 0, emptyErr
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
	}

	inputTokens, outputTokens := 0, 0
	if resp.UsageMetadata != nil {
		inputTokens = int(resp.UsageMetadata.PromptTokenCount)
		outputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	finish(inputTokens, outputTokens, nil)
	return text.String(), inputTokens + outputTokens, nil
}

func (c *GeminiClient) buildRequest(messages []Message, structured *StructuredOutput) ([]*genai.Content, *genai.GenerateContentConfig) {
	var contents []*genai.Content
	var systemParts []string

	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if msg.Content != "" {
				systemParts = append(systemParts, msg.Content)
			}
			continue
		}

		var parts []*genai.Part
		if msg.Content != "" {
			parts = append(parts, &genai.Part{Text: msg.Content})
		}
		for _, img := range msg.Images {
			parts = append(parts, &genai.Part{
				InlineData: &genai.Blob{
					MIMEType: detectImageMediaType(img),
					Data:     img,
				},
			})
		}
		if len(parts) == 0 {
			continue
		}

		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	genConfig := &genai.GenerateContentConfig{}

	if len(systemParts) > 0 {
		genConfig.SystemInstruction = &genai.Content{
			Role:  "user",
			Parts: []*genai.Part{{Text: strings.Join(systemParts, "\n\n")}},
		}
	}

	if c.cfg.Temperature != nil {
		genConfig.Temperature = genai.Ptr(float32(*c.cfg.Temperature))
	}
	if c.cfg.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(c.cfg.MaxTokens)
	}

	if structured != nil {
		genConfig.ResponseMIMEType = "application/json"
		if structured.Schema != nil {
			genConfig.ResponseSchema = toGenaiSchema(structured.Schema)
		}
	}

	return contents, genConfig
}

// toGenaiSchema converts a JSON schema map to the SDK's schema type. Only
// the subset the plan schema uses is mapped.
func toGenaiSchema(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return nil
	}

	s := &genai.Schema{}

	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(t)
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]interface{}); ok {
				s.Properties[name] = toGenaiSchema(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]interface{}); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]interface{}); ok {
		s.Items = toGenaiSchema(items)
	}
	if enum, ok := schema["enum"].([]interface{}); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok {
				s.Enum = append(s.Enum, es)
			}
		}
	}

	return s
}
