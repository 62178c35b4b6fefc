package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/kadirpekel/argus/pkg/llms"
)

// MockLLM implements the llms.LLMClient interface for testing.
//
// Responses are returned in order; when they run out the last one repeats.
// CompleteFunc overrides everything when set.
type MockLLM struct {
	mu sync.Mutex

	// Responses are the completion texts, consumed in order.
	Responses []string

	// Tokens is the token count reported for each completion.
	Tokens int

	// Model is returned by ModelName.
	Model string

	// Calls records the messages of every Complete invocation.
	Calls [][]llms.Message

	// StructuredCalls counts completions that requested a schema.
	StructuredCalls int

	// CompleteDelay delays every completion; CompleteErr fails them.
	CompleteDelay time.Duration
	CompleteErr   error

	CompleteFunc func(ctx context.Context, messages []llms.Message, structured *llms.StructuredOutput) (string, int, error)

	// Closed reports whether Close was called.
	Closed bool

	next int
}

// NewMockLLM creates a mock client that always plans a finish action.
func NewMockLLM() *MockLLM {
	return &MockLLM{
		Model:  "mock-model",
		Tokens: 10,
		Responses: []string{
			`{"action": "finish", "args": {}, "rationale": "goal complete", "done": true}`,
		},
	}
}

// NewMockLLMWithPlans creates a mock client returning the given completion
// texts in order.
func NewMockLLMWithPlans(responses ...string) *MockLLM {
	m := NewMockLLM()
	m.Responses = responses
	return m
}

func (m *MockLLM) Complete(ctx context.Context, messages []llms.Message, structured *llms.StructuredOutput) (string, int, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, messages, structured)
	}

	m.mu.Lock()
	m.Calls = append(m.Calls, messages)
	if structured != nil {
		m.StructuredCalls++
	}
	idx := m.next
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	m.next++
	delay := m.CompleteDelay
	err := m.CompleteErr
	tokens := m.Tokens
	var text string
	if idx >= 0 {
		text = m.Responses[idx]
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", 0, ctx.Err()
		}
	}
	if err != nil {
		return "", 0, err
	}
	if ctx.Err() != nil {
		return "", 0, ctx.Err()
	}

	return text, tokens, nil
}

func (m *MockLLM) ModelName() string {
	return m.Model
}

func (m *MockLLM) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// CompleteCount returns how many completions were requested.
func (m *MockLLM) CompleteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastMessages returns the messages of the most recent completion.
func (m *MockLLM) LastMessages() []llms.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	return m.Calls[len(m.Calls)-1]
}
