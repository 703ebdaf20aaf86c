// Package mock provides a test double for retrieval.Retriever.
package mock

import (
	"context"
	"sync"

	"github.com/poiesic/ragquery/core"
)

// MockRetriever is a test double for retrieval.Retriever.
// Every query is recorded; safe for concurrent use.
type MockRetriever struct {
	// RetrieveFunc is called by Retrieve if set.
	// If nil, Results is consulted and unknown queries return an empty list.
	RetrieveFunc func(ctx context.Context, query string) ([]core.DocumentRef, error)

	// Results maps a query to the list returned for it.
	Results map[string][]core.DocumentRef

	mu      sync.Mutex
	queries []string
}

// NewMockRetriever creates a retriever that answers from results.
func NewMockRetriever(results map[string][]core.DocumentRef) *MockRetriever {
	return &MockRetriever{Results: results}
}

// Retrieve records query and returns the configured result.
func (m *MockRetriever) Retrieve(ctx context.Context, query string) ([]core.DocumentRef, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	fn := m.RetrieveFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, query)
	}
	return m.Results[query], nil
}

// CallCount returns the number of Retrieve calls.
func (m *MockRetriever) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// Queries returns a copy of the queries received, in call order.
func (m *MockRetriever) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.queries))
	copy(out, m.queries)
	return out
}

// Reset clears recorded queries and custom behavior.
func (m *MockRetriever) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = nil
	m.RetrieveFunc = nil
}
