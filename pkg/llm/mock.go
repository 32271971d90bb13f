package llm

import (
	"context"
	"sync"
)

// MockClient is a scripted Client for tests. Responses are returned in
// order; the last one repeats once the script runs out.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	err       error
	requests  []CompletionRequest
}

// NewMockClient creates a mock that replies with the given responses.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{responses: responses}
}

// FailWith makes every Complete call return err.
func (m *MockClient) FailWith(err error) *MockClient {
	m.err = err
	return m
}

// Model returns a fixed test model name.
func (m *MockClient) Model() string {
	return "mock-model"
}

// Complete records the request and replies from the script.
func (m *MockClient) Complete(_ context.Context, req CompletionRequest) (*CompletionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}

	idx := len(m.requests) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	if idx < 0 {
		return &CompletionResult{}, nil
	}
	return &CompletionResult{Content: m.responses[idx]}, nil
}

// Requests returns the recorded requests.
func (m *MockClient) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest(nil), m.requests...)
}
