package agent_test

import (
	"testing"

	"github.com/deepscout/deepscout/internal/testutil"
	"github.com/deepscout/deepscout/pkg/agent"
	"github.com/deepscout/deepscout/pkg/domain"
)

func TestResearchPlanner_Plan(t *testing.T) {
	client := testutil.NewMockModelClient()
	client.Responses["research_plan"] = `{
		"topics": [
			{"title": "Foundations", "questions": ["What is quantum computing?", "How do qubits work?"]},
			{"title": "Applications", "questions": ["What problems does quantum computing solve today?"]}
		]
	}`

	p := agent.NewResearchPlanner(client)
	plan, err := p.Plan(testutil.NewTestContext(t), "quantum computing")
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	if plan.Topic != "quantum computing" {
		t.Errorf("topic = %v", plan.Topic)
	}
	if len(plan.Questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(plan.Questions))
	}

	// Plan order maps to strictly descending priorities
	wantPriorities := []int{3, 2, 1}
	for i, q := range plan.Questions {
		if q.Priority != wantPriorities[i] {
			t.Errorf("question %d priority = %d, want %d", i, q.Priority, wantPriorities[i])
		}
		if q.ID == "" {
			t.Errorf("question %d has no ID", i)
		}
		if q.Origin != "plan" {
			t.Errorf("question %d origin = %v, want plan", i, q.Origin)
		}
		if q.Status != domain.QuestionStatusPending {
			t.Errorf("question %d status = %v, want pending", i, q.Status)
		}
	}

	if plan.Questions[0].Subtopic != "Foundations" {
		t.Errorf("subtopic = %v, want Foundations", plan.Questions[0].Subtopic)
	}
	if plan.Questions[2].Subtopic != "Applications" {
		t.Errorf("subtopic = %v, want Applications", plan.Questions[2].Subtopic)
	}
}

func TestResearchPlanner_Plan_EmptyPlan(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"no topics", `{"topics": []}`},
		{"topics without questions", `{"topics": [{"title": "Empty", "questions": []}]}`},
		{"only empty question strings", `{"topics": [{"title": "Blank", "questions": [""]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testutil.NewMockModelClient()
			client.Responses["research_plan"] = tt.response

			p := agent.NewResearchPlanner(client)
			_, err := p.Plan(testutil.NewTestContext(t), "some topic")
			if err == nil {
				t.Fatal("expected error for empty plan, got nil")
			}
			if !domain.IsKind(err, domain.ErrKindPlanning) {
				t.Errorf("kind = %v, want %v", domain.KindOf(err), domain.ErrKindPlanning)
			}
		})
	}
}

func TestResearchPlanner_Plan_ModelError(t *testing.T) {
	client := testutil.NewMockModelClient()
	client.ShouldError = true

	p := agent.NewResearchPlanner(client)
	if _, err := p.Plan(testutil.NewTestContext(t), "some topic"); err == nil {
		t.Error("expected error, got nil")
	}
}
