// Package utils provides shared helpers for the argus runtime.
package utils

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator approximates LLM token usage. The memory manager uses it for
// budget enforcement, so estimates should err on the high side rather than
// undercount.
type Estimator interface {
	Estimate(text string) int
}

// EstimateTokens is the default heuristic: word count x 1.3 plus character
// count / 4.5. It tracks real tokenizers closely enough for budgeting and
// needs no model-specific vocabulary.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	chars := len(text)
	return int(float64(words)*1.3 + float64(chars)/4.5)
}

// HeuristicEstimator implements Estimator with EstimateTokens.
type HeuristicEstimator struct{}

func (HeuristicEstimator) Estimate(text string) int {
	return EstimateTokens(text)
}

var (
	// Cache encodings; tiktoken initialization is expensive.
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// TiktokenEstimator counts tokens with a real tokenizer. Unknown models fall
// back to cl100k_base, which is a reasonable approximation for Anthropic and
// Gemini models too.
type TiktokenEstimator struct {
	encoding *tiktoken.Tiktoken
	model    string
	mu       sync.RWMutex
}

// NewTiktokenEstimator creates an estimator for a specific model.
func NewTiktokenEstimator(model string) (*TiktokenEstimator, error) {
	cacheMu.RLock()
	cached, exists := encodingCache[model]
	cacheMu.RUnlock()

	if exists {
		return &TiktokenEstimator{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &TiktokenEstimator{encoding: encoding, model: model}, nil
}

func (e *TiktokenEstimator) Estimate(text string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.encoding.Encode(text, nil, nil))
}

// Model returns the model name this estimator was built for.
func (e *TiktokenEstimator) Model() string {
	return e.model
}

// NewEstimator builds an estimator by kind. Kind "tiktoken" requires a model
// name; anything else yields the heuristic.
func NewEstimator(kind, model string) (Estimator, error) {
	switch kind {
	case "tiktoken":
		return NewTiktokenEstimator(model)
	case "", "heuristic":
		return HeuristicEstimator{}, nil
	default:
		return nil, fmt.Errorf("unknown token estimator: %s", kind)
	}
}
