package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/deepscout/deepscout/pkg/domain"
)

// MockModelClient is a mock implementation of ModelClient for testing.
// Responses are keyed by schema name; free-text calls use the "text" key.
type MockModelClient struct {
	mu          sync.Mutex
	Responses   map[string]string
	CallCount   int
	LastRequest domain.CompletionRequest
	ShouldError bool
	ErrorToUse  error
	// CompleteFunc allows custom completion behavior for tests
	CompleteFunc func(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error)
}

// NewMockModelClient creates a new mock model client
func NewMockModelClient() *MockModelClient {
	return &MockModelClient{
		Responses: make(map[string]string),
	}
}

// Complete implements domain.ModelClient
func (m *MockModelClient) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastRequest = req
	fn := m.CompleteFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ShouldError {
		if m.ErrorToUse != nil {
			return nil, m.ErrorToUse
		}
		return nil, fmt.Errorf("mock model error")
	}

	key := "text"
	if req.Schema != nil {
		key = req.Schema.Name
	}

	content, ok := m.Responses[key]
	if !ok {
		content = "Mock completion"
	}

	return &domain.Completion{
		Content: content,
		Usage: domain.TokenUsage{
			PromptTokens:     50,
			CompletionTokens: 50,
			TotalTokens:      100,
		},
	}, nil
}

// GetCallCount returns the number of Complete calls made
func (m *MockModelClient) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// GetLastRequest returns the most recent completion request
func (m *MockModelClient) GetLastRequest() domain.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastRequest
}

// MockSearcher is a mock implementation of Searcher for testing
type MockSearcher struct {
	mu          sync.Mutex
	Results     []domain.SearchResult
	CallCount   int
	LastQuery   string
	ShouldError bool
	ErrorToUse  error
	// SearchFunc allows custom search behavior for tests
	SearchFunc func(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}

// NewMockSearcher creates a new mock searcher with a default result set
func NewMockSearcher() *MockSearcher {
	return &MockSearcher{
		Results: []domain.SearchResult{
			{Title: "Mock Result", URL: "https://example.com/mock", Snippet: "Mock snippet"},
		},
	}
}

// Search implements domain.Searcher
func (m *MockSearcher) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastQuery = query
	fn := m.SearchFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, query, opts)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ShouldError {
		if m.ErrorToUse != nil {
			return nil, m.ErrorToUse
		}
		return nil, fmt.Errorf("mock search error")
	}

	results := m.Results
	if opts.MaxResults > 0 && len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}
	out := make([]domain.SearchResult, len(results))
	copy(out, results)
	return out, nil
}

// GetCallCount returns the number of Search calls made
func (m *MockSearcher) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// GetLastQuery returns the most recent search query
func (m *MockSearcher) GetLastQuery() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastQuery
}
