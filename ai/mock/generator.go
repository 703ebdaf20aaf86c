package mock

import (
	"context"
	"sync"
)

// MockGenerator is a test double for ai.Generator.
// Every prompt is recorded so tests can assert on prompt contents and call order.
type MockGenerator struct {
	// GenerateTextFunc is called by GenerateText if set.
	// If nil, the prompt is echoed back with a "response to: " prefix.
	GenerateTextFunc func(ctx context.Context, prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

// NewMockGenerator creates a mock generator with default echo behavior.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// GenerateText records the prompt and delegates to GenerateTextFunc.
func (m *MockGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	fn := m.GenerateTextFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt)
	}
	return "response to: " + prompt, nil
}

// CallCount returns the number of GenerateText calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns a copy of every prompt received, in call order.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Reset clears recorded prompts and custom behavior.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = nil
	m.GenerateTextFunc = nil
}
