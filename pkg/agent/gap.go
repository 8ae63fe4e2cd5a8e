package agent

import (
	"context"

	"github.com/deepscout/deepscout/pkg/domain"
	"github.com/deepscout/deepscout/pkg/observability"
	"github.com/google/uuid"
)

// GapAnalyzer judges whether the accumulated findings cover the topic and
// turns any remaining gaps into new research questions.
type GapAnalyzer struct {
	client domain.ModelClient
	logger observability.Logger
}

// NewGapAnalyzer creates a new gap analyzer
func NewGapAnalyzer(client domain.ModelClient) *GapAnalyzer {
	return &GapAnalyzer{
		client: client,
		logger: observability.NewStructuredLogger("agent.gap"),
	}
}

type researchDecision struct {
	IsComplete bool     `json:"is_complete"`
	Reasoning  string   `json:"reasoning"`
	Gaps       []string `json:"gaps"`
}

// Analyze evaluates the findings collected so far against the plan. The
// returned report carries new questions iff the research is incomplete;
// question priorities are left at zero for the caller to assign relative
// to its queue.
func (g *GapAnalyzer) Analyze(ctx context.Context, topic string, plan *domain.ResearchPlan, findings []domain.Finding) (*domain.GapReport, error) {
	if len(findings) == 0 {
		return &domain.GapReport{
			Complete:  false,
			Reasoning: "No research has been conducted yet.",
			NewQuestions: []domain.ResearchQuestion{{
				ID:     uuid.NewString(),
				Text:   "All aspects of the topic need to be researched.",
				Status: domain.QuestionStatusPending,
				Origin: "gap",
			}},
		}, nil
	}

	g.logger.Debug(ctx, "analyzing research gaps", map[string]interface{}{
		"topic":    topic,
		"findings": len(findings),
	})

	decision, usage, err := callStructured[researchDecision](ctx, g.client, domain.CompletionRequest{
		System: gapSystemPrompt,
		User:   buildGapPrompt(topic, plan, findings),
		Schema: &domain.ResponseSchema{Name: "research_decision", Schema: gapSchema},
	})
	if err != nil {
		return nil, err
	}

	report := &domain.GapReport{
		Complete:  decision.IsComplete,
		Reasoning: decision.Reasoning,
	}

	// A complete verdict discards any stray gaps so the report invariant
	// holds: new questions exist only when research continues.
	if !decision.IsComplete {
		for _, gap := range decision.Gaps {
			if gap == "" {
				continue
			}
			report.NewQuestions = append(report.NewQuestions, domain.ResearchQuestion{
				ID:     uuid.NewString(),
				Text:   gap,
				Status: domain.QuestionStatusPending,
				Origin: "gap",
			})
		}
	}

	g.logger.Info(ctx, "gap analysis complete", map[string]interface{}{
		"complete":      report.Complete,
		"new_questions": len(report.NewQuestions),
		"total_tokens":  usage.TotalTokens,
	})

	return report, nil
}
