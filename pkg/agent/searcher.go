package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deepscout/deepscout/pkg/domain"
	"github.com/deepscout/deepscout/pkg/observability"
)

// SearchExecutor answers one research question: it retrieves sources for
// the question and summarizes them with citations. Retrieval and
// summarization failures never abort a run; they produce a degraded
// finding so the question is still marked answered exactly once.
type SearchExecutor struct {
	client     domain.ModelClient
	searcher   domain.Searcher
	maxResults int
	logger     observability.Logger
}

// NewSearchExecutor creates a new search executor
func NewSearchExecutor(client domain.ModelClient, searcher domain.Searcher, maxResults int) *SearchExecutor {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &SearchExecutor{
		client:     client,
		searcher:   searcher,
		maxResults: maxResults,
		logger:     observability.NewStructuredLogger("agent.searcher"),
	}
}

// Execute researches a single question and always returns a finding
func (e *SearchExecutor) Execute(ctx context.Context, question domain.ResearchQuestion, sc domain.SearchContext) domain.Finding {
	query := contextualizeQuery(question.Text, sc)

	e.logger.Debug(ctx, "executing search", map[string]interface{}{
		"question_id": question.ID,
		"query":       query,
	})

	results, err := e.searcher.Search(ctx, query, domain.SearchOptions{MaxResults: e.maxResults})
	if err != nil {
		wrapped := domain.WrapQuestionError(domain.ErrKindRetrieval, domain.StageSearching, question.ID, err)
		e.logger.Warn(ctx, "search failed, recording degraded finding", map[string]interface{}{
			"question_id": question.ID,
			"error":       wrapped.Error(),
		})
		return domain.Finding{
			QuestionID: question.ID,
			Question:   question.Text,
			Summary:    fmt.Sprintf("Research for this question failed: %v", err),
			Degraded:   true,
			Iteration:  sc.Iteration,
			CreatedAt:  time.Now(),
		}
	}

	if len(results) == 0 {
		e.logger.Info(ctx, "search returned no results", map[string]interface{}{
			"question_id": question.ID,
		})
		return domain.Finding{
			QuestionID: question.ID,
			Question:   question.Text,
			Summary:    "No sources were found for this question.",
			Iteration:  sc.Iteration,
			CreatedAt:  time.Now(),
		}
	}

	sources := make([]domain.Citation, len(results))
	now := time.Now()
	for i, r := range results {
		sources[i] = domain.Citation{
			Title:      r.Title,
			URL:        r.URL,
			Snippet:    r.Snippet,
			AccessedAt: now,
		}
	}

	summary, degraded := e.summarize(ctx, question, results, sc)

	return domain.Finding{
		QuestionID: question.ID,
		Question:   question.Text,
		Summary:    summary,
		Sources:    sources,
		Degraded:   degraded,
		Iteration:  sc.Iteration,
		CreatedAt:  time.Now(),
	}
}

// summarize condenses the search results into a cited summary. When the
// model is unavailable the raw snippets stand in and the finding is
// marked degraded.
func (e *SearchExecutor) summarize(ctx context.Context, question domain.ResearchQuestion, results []domain.SearchResult, sc domain.SearchContext) (string, bool) {
	completion, err := e.client.Complete(ctx, domain.CompletionRequest{
		System: summarizerSystemPrompt,
		User:   buildSummarizerPrompt(question.Text, results, sc),
	})
	if err != nil || strings.TrimSpace(completion.Content) == "" {
		e.logger.Warn(ctx, "summarization failed, falling back to snippets", map[string]interface{}{
			"question_id": question.ID,
		})
		return snippetFallback(results), true
	}
	return strings.TrimSpace(completion.Content), false
}

// snippetFallback joins the raw snippets so a degraded finding still
// carries the retrieved content.
func snippetFallback(results []domain.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s: %s\n", i+1, r.Title, r.Snippet)
	}
	return strings.TrimSpace(b.String())
}
