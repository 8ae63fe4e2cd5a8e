package agent_test

import (
	"strings"
	"testing"

	"github.com/deepscout/deepscout/internal/testutil"
	"github.com/deepscout/deepscout/pkg/agent"
	"github.com/deepscout/deepscout/pkg/domain"
)

func TestGapAnalyzer_Analyze_Incomplete(t *testing.T) {
	client := testutil.NewMockModelClient()
	client.Responses["research_decision"] = `{
		"is_complete": false,
		"reasoning": "Cost aspects are not covered.",
		"gaps": ["What does quantum hardware cost today?", "Who are the major vendors?"]
	}`

	g := agent.NewGapAnalyzer(client)
	plan := testutil.NewTestPlan("quantum computing", 2)
	findings := []domain.Finding{testutil.NewTestFinding("q1", "a summary")}

	report, err := g.Analyze(testutil.NewTestContext(t), "quantum computing", plan, findings)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if report.Complete {
		t.Error("report should be incomplete")
	}

	// The prompt distinguishes planned coverage from the findings
	prompt := client.GetLastRequest().User
	if !strings.Contains(prompt, plan.Questions[0].Text) {
		t.Error("prompt missing the research plan")
	}
	if !strings.Contains(prompt, "a summary") {
		t.Error("prompt missing the finding summaries")
	}
	if len(report.NewQuestions) != 2 {
		t.Fatalf("got %d new questions, want 2", len(report.NewQuestions))
	}
	for i, q := range report.NewQuestions {
		if q.Origin != "gap" {
			t.Errorf("question %d origin = %v, want gap", i, q.Origin)
		}
		if q.ID == "" {
			t.Errorf("question %d has no ID", i)
		}
		if q.Status != domain.QuestionStatusPending {
			t.Errorf("question %d status = %v, want pending", i, q.Status)
		}
	}
}

func TestGapAnalyzer_Analyze_Complete(t *testing.T) {
	client := testutil.NewMockModelClient()
	// A complete verdict with stray gaps still yields an empty question list
	client.Responses["research_decision"] = `{
		"is_complete": true,
		"reasoning": "All key aspects are covered.",
		"gaps": ["leftover noise"]
	}`

	g := agent.NewGapAnalyzer(client)
	findings := []domain.Finding{testutil.NewTestFinding("q1", "a summary")}

	report, err := g.Analyze(testutil.NewTestContext(t), "quantum computing", testutil.NewTestPlan("quantum computing", 1), findings)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if !report.Complete {
		t.Error("report should be complete")
	}
	if len(report.NewQuestions) != 0 {
		t.Errorf("complete report carries %d new questions, want 0", len(report.NewQuestions))
	}
}

func TestGapAnalyzer_Analyze_NoFindings(t *testing.T) {
	client := testutil.NewMockModelClient()
	g := agent.NewGapAnalyzer(client)

	report, err := g.Analyze(testutil.NewTestContext(t), "quantum computing", nil, nil)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if report.Complete {
		t.Error("empty research cannot be complete")
	}
	if len(report.NewQuestions) == 0 {
		t.Error("expected at least one catch-all question")
	}
	if client.GetCallCount() != 0 {
		t.Error("no model call expected for empty findings")
	}
}

func TestGapAnalyzer_Analyze_ModelError(t *testing.T) {
	client := testutil.NewMockModelClient()
	client.ShouldError = true

	g := agent.NewGapAnalyzer(client)
	findings := []domain.Finding{testutil.NewTestFinding("q1", "a summary")}

	if _, err := g.Analyze(testutil.NewTestContext(t), "topic", nil, findings); err == nil {
		t.Error("expected error, got nil")
	}
}
