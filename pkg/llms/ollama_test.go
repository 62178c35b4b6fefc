package llms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kadirpekel/argus/pkg/config"
)

func ollamaTestConfig(baseURL string) *config.LLMProviderConfig {
	cfg := &config.LLMProviderConfig{
		Provider: config.LLMProviderOllama,
		Model:    "llama3.2",
		BaseURL:  baseURL,
		Timeout:  5 * time.Second,
	}
	cfg.SetDefaults()
	return cfg
}

func TestNewOllamaClient_NoAPIKeyRequired(t *testing.T) {
	client, err := NewOllamaClient(ollamaTestConfig(""))
	if err != nil {
		t.Fatalf("NewOllamaClient() error = %v, want nil", err)
	}
	if client.baseURL != "http://localhost:11434" {
		t.Errorf("baseURL = %v, want default endpoint", client.baseURL)
	}
}

func TestOllamaClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		if r.URL.Path != "/api/chat" {
			t.Errorf("Expected /api/chat, got %s", r.URL.Path)
		}

		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Model != "llama3.2" {
			t.Errorf("Expected model llama3.2, got %s", req.Model)
		}
		if req.Stream {
			t.Error("Expected stream=false")
		}
		if req.Format != nil {
			t.Errorf("Expected no format for plain completion, got %v", req.Format)
		}
		if req.Options == nil || req.Options.NumPredict == 0 {
			t.Errorf("Expected num_predict from MaxTokens, got %+v", req.Options)
		}

		response := ollamaResponse{Done: true, PromptEvalCount: 7, EvalCount: 5}
		response.Message.Role = "assistant"
		response.Message.Content = "Type the username first."
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client, err := NewOllamaClient(ollamaTestConfig(server.URL))
	if err != nil {
		t.Fatalf("NewOllamaClient() error = %v", err)
	}

	text, tokens, err := client.Complete(context.Background(), []Message{UserMessage("next step")}, nil)
	if err != nil {
		t.Fatalf("Complete() error = %v, want nil", err)
	}
	if text != "Type the username first." {
		t.Errorf("Complete() text = %q, want the message content", text)
	}
	if tokens != 12 {
		t.Errorf("Complete() tokens = %d, want prompt+eval counts", tokens)
	}
}

func TestOllamaClient_Complete_StructuredFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}

		// The schema rides in the format field for server-side constrained
		// decoding, and in a leading system message for the model itself.
		format, ok := req.Format.(map[string]interface{})
		if !ok {
			t.Fatalf("Expected schema object in format, got %T", req.Format)
		}
		if format["type"] != "object" {
			t.Errorf("Expected object schema, got %v", format["type"])
		}
		if len(req.Messages) < 2 || req.Messages[0].Role != "system" {
			t.Fatalf("Expected leading system instruction, got %+v", req.Messages)
		}
		if !strings.Contains(req.Messages[0].Content, "valid JSON matching this exact schema") {
			t.Errorf("Expected schema instruction, got %q", req.Messages[0].Content)
		}

		response := ollamaResponse{Done: true}
		response.Message.Content = `{"action":"finish","args":{},"done":true}`
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client, err := NewOllamaClient(ollamaTestConfig(server.URL))
	if err != nil {
		t.Fatalf("NewOllamaClient() error = %v", err)
	}

	structured := &StructuredOutput{
		Schema: map[string]interface{}{"type": "object"},
	}

	text, _, err := client.Complete(context.Background(), []Message{UserMessage("next step")}, structured)
	if err != nil {
		t.Fatalf("Complete() error = %v, want nil", err)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		t.Errorf("Complete() text does not parse as JSON: %v", err)
	}
}

func TestOllamaClient_Complete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ollamaResponse{Error: "model not loaded"})
	}))
	defer server.Close()

	client, err := NewOllamaClient(ollamaTestConfig(server.URL))
	if err != nil {
		t.Fatalf("NewOllamaClient() error = %v", err)
	}

	_, _, err = client.Complete(context.Background(), []Message{UserMessage("hi")}, nil)
	if err == nil {
		t.Fatal("Complete() error = nil, want API error")
	}
	if !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("Complete() error = %v, want it to carry the API message", err)
	}
}

func TestOllamaClient_BuildRequest_Images(t *testing.T) {
	client, err := NewOllamaClient(ollamaTestConfig(""))
	if err != nil {
		t.Fatalf("NewOllamaClient() error = %v", err)
	}

	req := client.buildRequest([]Message{UserMessageWithImages("look", []byte{0x89, 0x50})}, nil)

	if len(req.Messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(req.Messages))
	}
	if len(req.Messages[0].Images) != 1 {
		t.Fatalf("Expected 1 image, got %d", len(req.Messages[0].Images))
	}
	// Raw base64, no data URI prefix.
	if strings.HasPrefix(req.Messages[0].Images[0], "data:") {
		t.Errorf("Expected bare base64 image, got %q", req.Messages[0].Images[0])
	}
}
