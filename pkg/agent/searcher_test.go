package agent_test

import (
	"context"
	"strings"
	"testing"

	"github.com/deepscout/deepscout/internal/testutil"
	"github.com/deepscout/deepscout/pkg/agent"
	"github.com/deepscout/deepscout/pkg/domain"
)

func TestSearchExecutor_Execute(t *testing.T) {
	client := testutil.NewMockModelClient()
	client.Responses["text"] = "Qubits exploit superposition [1]."

	searcher := testutil.NewMockSearcher()
	searcher.Results = []domain.SearchResult{
		{Title: "Qubit Basics", URL: "https://example.com/qubits", Snippet: "about qubits"},
		{Title: "More Qubits", URL: "https://example.com/more", Snippet: "more about qubits"},
	}

	e := agent.NewSearchExecutor(client, searcher, 5)
	q := testutil.NewTestQuestion("q1", "How do qubits work?", 3)
	sc := domain.SearchContext{Topic: "quantum computing", Subtopic: "Foundations", Iteration: 0}

	finding := e.Execute(testutil.NewTestContext(t), q, sc)

	if finding.QuestionID != "q1" {
		t.Errorf("question id = %v", finding.QuestionID)
	}
	if finding.Degraded {
		t.Error("finding should not be degraded")
	}
	if finding.Summary != "Qubits exploit superposition [1]." {
		t.Errorf("summary = %q", finding.Summary)
	}
	if len(finding.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(finding.Sources))
	}
	if finding.Sources[0].URL != "https://example.com/qubits" {
		t.Errorf("source url = %v", finding.Sources[0].URL)
	}

	// The query sent to the search provider is anchored to topic and subtopic
	query := searcher.GetLastQuery()
	if !strings.Contains(query, "Research on: quantum computing") {
		t.Errorf("query %q missing topic context", query)
	}
	if !strings.Contains(query, "Subtopic: Foundations") {
		t.Errorf("query %q missing subtopic context", query)
	}
	if !strings.Contains(query, "How do qubits work?") {
		t.Errorf("query %q missing question text", query)
	}
}

func TestSearchExecutor_Execute_SearchFailureDegrades(t *testing.T) {
	searcher := testutil.NewMockSearcher()
	searcher.ShouldError = true

	e := agent.NewSearchExecutor(testutil.NewMockModelClient(), searcher, 5)
	q := testutil.NewTestQuestion("q1", "some question", 1)

	finding := e.Execute(testutil.NewTestContext(t), q, domain.SearchContext{Topic: "t"})

	if !finding.Degraded {
		t.Error("expected degraded finding after search failure")
	}
	if finding.QuestionID != "q1" {
		t.Errorf("question id = %v", finding.QuestionID)
	}
	if len(finding.Sources) != 0 {
		t.Errorf("degraded finding has %d sources, want 0", len(finding.Sources))
	}
	if finding.Summary == "" {
		t.Error("degraded finding has empty summary")
	}
}

func TestSearchExecutor_Execute_NoResults(t *testing.T) {
	searcher := testutil.NewMockSearcher()
	searcher.Results = nil

	client := testutil.NewMockModelClient()
	e := agent.NewSearchExecutor(client, searcher, 5)
	q := testutil.NewTestQuestion("q1", "obscure question", 1)

	finding := e.Execute(testutil.NewTestContext(t), q, domain.SearchContext{Topic: "t"})

	if finding.Degraded {
		t.Error("empty result set is a valid outcome, not a degraded one")
	}
	if len(finding.Sources) != 0 {
		t.Errorf("got %d sources, want 0", len(finding.Sources))
	}
	if client.GetCallCount() != 0 {
		t.Error("summarizer should not run with no results")
	}
}

func TestSearchExecutor_Execute_SummarizeFailureFallsBack(t *testing.T) {
	client := testutil.NewMockModelClient()
	client.CompleteFunc = func(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
		return nil, domain.WrapError(domain.ErrKindModelUnavail, "", nil)
	}

	searcher := testutil.NewMockSearcher()
	searcher.Results = []domain.SearchResult{
		{Title: "Source A", URL: "https://example.com/a", Snippet: "snippet a"},
	}

	e := agent.NewSearchExecutor(client, searcher, 5)
	q := testutil.NewTestQuestion("q1", "some question", 1)

	finding := e.Execute(testutil.NewTestContext(t), q, domain.SearchContext{Topic: "t"})

	if !finding.Degraded {
		t.Error("expected degraded finding after summarize failure")
	}
	// Sources survive even though summarization failed
	if len(finding.Sources) != 1 {
		t.Fatalf("got %d sources, want 1", len(finding.Sources))
	}
	if !strings.Contains(finding.Summary, "snippet a") {
		t.Errorf("fallback summary %q missing snippet content", finding.Summary)
	}
}

func TestSearchExecutor_Execute_RecordsIteration(t *testing.T) {
	e := agent.NewSearchExecutor(testutil.NewMockModelClient(), testutil.NewMockSearcher(), 5)
	q := testutil.NewTestQuestion("q1", "some question", 1)

	finding := e.Execute(testutil.NewTestContext(t), q, domain.SearchContext{Topic: "t", Iteration: 2})

	if finding.Iteration != 2 {
		t.Errorf("iteration = %d, want 2", finding.Iteration)
	}
}
