package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/deepscout/deepscout/pkg/domain"
	"github.com/deepscout/deepscout/pkg/observability"
	"github.com/google/uuid"
)

// ResearchPlanner breaks a validated topic into subtopics and concrete
// research questions, ordered from foundational to specific.
type ResearchPlanner struct {
	client domain.ModelClient
	logger observability.Logger
}

// NewResearchPlanner creates a new research planner
func NewResearchPlanner(client domain.ModelClient) *ResearchPlanner {
	return &ResearchPlanner{
		client: client,
		logger: observability.NewStructuredLogger("agent.planner"),
	}
}

type plannedSubtopic struct {
	Title     string   `json:"title"`
	Questions []string `json:"questions"`
}

type plannedResearch struct {
	Topics []plannedSubtopic `json:"topics"`
}

// Plan produces the research plan for a topic. A plan with no questions
// is a planning failure: the pipeline has nothing to research.
func (p *ResearchPlanner) Plan(ctx context.Context, topic string) (*domain.ResearchPlan, error) {
	p.logger.Info(ctx, "creating research plan", map[string]interface{}{
		"topic": topic,
	})

	planned, usage, err := callStructured[plannedResearch](ctx, p.client, domain.CompletionRequest{
		System: plannerSystemPrompt,
		User:   buildPlannerPrompt(topic),
		Schema: &domain.ResponseSchema{Name: "research_plan", Schema: plannerSchema},
	})
	if err != nil {
		return nil, err
	}

	total := 0
	for _, sub := range planned.Topics {
		for _, q := range sub.Questions {
			if q != "" {
				total++
			}
		}
	}
	if total == 0 {
		return nil, domain.WrapError(domain.ErrKindPlanning, domain.StagePlanning,
			fmt.Errorf("plan contains no research questions"))
	}

	// Flatten in plan order with descending priorities so the question
	// queue works through foundational subtopics first.
	questions := make([]domain.ResearchQuestion, 0, total)
	priority := total
	for _, sub := range planned.Topics {
		for _, text := range sub.Questions {
			if text == "" {
				continue
			}
			questions = append(questions, domain.ResearchQuestion{
				ID:       uuid.NewString(),
				Text:     text,
				Subtopic: sub.Title,
				Priority: priority,
				Status:   domain.QuestionStatusPending,
				Origin:   "plan",
			})
			priority--
		}
	}

	p.logger.Info(ctx, "research plan created", map[string]interface{}{
		"subtopics":    len(planned.Topics),
		"questions":    len(questions),
		"total_tokens": usage.TotalTokens,
	})

	return &domain.ResearchPlan{
		Topic:     topic,
		Questions: questions,
		CreatedAt: time.Now(),
	}, nil
}
