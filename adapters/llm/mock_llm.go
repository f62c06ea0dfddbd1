package llm

import (
	"context"
	"sync"

	"github.com/satriahrh/studybuddy/domain/repositories"
)

// MockLLM returns canned completions keyed by response format
type MockLLM struct {
	mu       sync.Mutex
	requests []repositories.CompletionRequest

	// Replies maps a response format to the content returned for it
	Replies map[repositories.ResponseFormat]string
	Err     error
}

var _ repositories.LargeLanguageModel = (*MockLLM)(nil)

// NewMockLLM creates a mock that answers every JSON request with a two-segment reply
// and every text request with a small flowchart
func NewMockLLM() *MockLLM {
	return &MockLLM{
		Replies: map[repositories.ResponseFormat]string{
			repositories.ResponseFormatJSON: `{"messages":[` +
				`{"text":"Recursion is when a function solves a problem by calling itself on a smaller piece.","facialExpression":"smile","animation":"talking_1"},` +
				`{"text":"Every recursive function needs a base case so it knows when to stop.","facialExpression":"default","animation":"talking_0"}]}`,
			repositories.ResponseFormatText: "graph TD\n  A[Problem] --> B{Base case?}\n  B -->|yes| C[Return]\n  B -->|no| D[Recurse]",
		},
	}
}

// Complete implements repositories.LargeLanguageModel
func (m *MockLLM) Complete(ctx context.Context, req repositories.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	return m.Replies[req.Format], nil
}

// Requests returns every completion request received
func (m *MockLLM) Requests() []repositories.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repositories.CompletionRequest(nil), m.requests...)
}
