// Package llm provides the LLM clients used by the SAS conversion
// pipeline, plus response parsing helpers.
package llm

import "context"

// CompletionRequest is a single prompt exchange.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	// MaxTokens bounds the completion length. Zero lets the backend
	// default apply.
	MaxTokens int
}

// CompletionResult holds the model output and usage accounting.
type CompletionResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// Client is the conversion pipeline's view of an LLM backend.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
	Model() string
}
