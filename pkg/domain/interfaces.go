package domain

import (
	"context"
)

// ModelClient defines the interface for language model interactions.
// Every agent in the pipeline wraps a single Complete call with its own
// prompt and response schema.
type ModelClient interface {
	// Complete submits a structured prompt and returns the completion
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// Searcher defines the interface for web retrieval. An empty result set
// is a valid, non-error outcome.
type Searcher interface {
	// Search retrieves raw content for a query
	Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error)
}

// ResponseSchema constrains a completion to a named JSON schema
type ResponseSchema struct {
	Name   string `json:"name"`
	Schema string `json:"schema"` // raw JSON schema document
}

// CompletionRequest describes one prompt submission
type CompletionRequest struct {
	System      string          `json:"system,omitempty"`
	User        string          `json:"user"`
	Schema      *ResponseSchema `json:"schema,omitempty"` // nil means free text
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

// Completion is the model's structured response
type Completion struct {
	Content string     `json:"content"`
	Usage   TokenUsage `json:"usage"`
}

// SearchOptions provides options for web retrieval
type SearchOptions struct {
	MaxResults int `json:"max_results,omitempty"`
}

// SearchResult is one retrieved source
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}
