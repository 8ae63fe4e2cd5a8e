package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/deepscout/deepscout/pkg/domain"
)

// TestTimeout provides a standard timeout for test contexts
const TestTimeout = 5 * time.Second

// NewTestContext creates a context with standard test timeout
func NewTestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	t.Cleanup(cancel)
	return ctx
}

// NewTestQuestion creates a test research question
func NewTestQuestion(id, text string, priority int) domain.ResearchQuestion {
	return domain.ResearchQuestion{
		ID:       id,
		Text:     text,
		Subtopic: "test subtopic",
		Priority: priority,
		Status:   domain.QuestionStatusPending,
		Origin:   "plan",
	}
}

// NewTestPlan creates a test research plan with n questions in
// descending priority order.
func NewTestPlan(topic string, n int) *domain.ResearchPlan {
	questions := make([]domain.ResearchQuestion, n)
	for i := 0; i < n; i++ {
		questions[i] = NewTestQuestion(
			fmt.Sprintf("q-%d", i+1),
			fmt.Sprintf("test question %d about %s", i+1, topic),
			n-i,
		)
	}
	return &domain.ResearchPlan{
		Topic:     topic,
		Questions: questions,
		CreatedAt: time.Now(),
	}
}

// NewTestFinding creates a test finding for a question
func NewTestFinding(questionID, summary string) domain.Finding {
	return domain.Finding{
		QuestionID: questionID,
		Question:   "test question",
		Summary:    summary,
		Sources: []domain.Citation{
			{Title: "Test Source", URL: "https://example.com/" + questionID, AccessedAt: time.Now()},
		},
		CreatedAt: time.Now(),
	}
}

// AssertEqual checks if two values are equal
func AssertEqual(t *testing.T, expected, actual interface{}, msg string) {
	t.Helper()
	if expected != actual {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertNoError checks if error is nil
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Errorf("%s: unexpected error: %v", msg, err)
	}
}

// AssertError checks if error is not nil
func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected error but got nil", msg)
	}
}
