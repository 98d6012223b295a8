package llm

import (
	"context"
	"strings"
	"sync"
)

// MockProvider returns canned responses and records requests. Responses are
// matched by substring of the last user message; Err, when set, is returned
// for every call.
type MockProvider struct {
	mu              sync.Mutex
	responses       map[string]string
	DefaultResponse string
	Err             error
	Requests        []CompletionRequest
}

func NewMockProvider(defaultResponse string) *MockProvider {
	return &MockProvider{
		responses:       make(map[string]string),
		DefaultResponse: defaultResponse,
	}
}

// On registers response for prompts containing substr.
func (m *MockProvider) On(substr, response string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[substr] = response
	return m
}

func (m *MockProvider) Name() string {
	return "mock"
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	err := m.Err
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, wrapErr(ctx, m.Name(), ctx.Err())
	}

	var prompt string
	if n := len(req.Messages); n > 0 {
		prompt = req.Messages[n-1].Content
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for substr, resp := range m.responses {
		if strings.Contains(prompt, substr) {
			return &CompletionResponse{Content: resp, Model: req.Model}, nil
		}
	}
	return &CompletionResponse{Content: m.DefaultResponse, Model: req.Model}, nil
}

// Calls returns the number of recorded requests.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
