package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/deepscout/deepscout/pkg/domain"
	"github.com/deepscout/deepscout/pkg/observability"
)

// QueryValidator evaluates whether a submitted topic is a researchable
// request, rejects non-research queries, and asks for clarification when
// the topic is too vague to plan against.
type QueryValidator struct {
	client domain.ModelClient
	logger observability.Logger
}

// NewQueryValidator creates a new query validator
func NewQueryValidator(client domain.ModelClient) *QueryValidator {
	return &QueryValidator{
		client: client,
		logger: observability.NewStructuredLogger("agent.validator"),
	}
}

type triageDecision struct {
	Status                string `json:"status"`
	Reasoning             string `json:"reasoning"`
	ClarificationQuestion string `json:"clarification_question"`
}

// Validate classifies the topic. The history carries prior clarification
// turns so a refined topic is judged against what was already asked.
func (v *QueryValidator) Validate(ctx context.Context, topic string, history []domain.Exchange) (*domain.ValidationOutcome, error) {
	// An empty topic needs no model call: there is nothing to judge, so
	// ask for one and suspend.
	if strings.TrimSpace(topic) == "" {
		reasoning := "No research topic was provided."
		return &domain.ValidationOutcome{
			Status:    domain.ValidationNeedsClarification,
			Reasoning: reasoning,
			Clarification: &domain.ClarificationRequest{
				Question:  "What topic would you like me to research?",
				Reasoning: reasoning,
			},
		}, nil
	}

	v.logger.Debug(ctx, "validating topic", map[string]interface{}{
		"topic":        topic,
		"history_size": len(history),
	})

	decision, usage, err := callStructured[triageDecision](ctx, v.client, domain.CompletionRequest{
		System: validatorSystemPrompt,
		User:   buildValidatorPrompt(topic, history),
		Schema: &domain.ResponseSchema{Name: "triage_decision", Schema: validatorSchema},
	})
	if err != nil {
		return nil, err
	}

	outcome := &domain.ValidationOutcome{
		Status:    domain.ValidationStatus(decision.Status),
		Reasoning: decision.Reasoning,
	}

	switch outcome.Status {
	case domain.ValidationValid, domain.ValidationInvalid:
	case domain.ValidationNeedsClarification:
		if decision.ClarificationQuestion == "" {
			return nil, domain.WrapError(domain.ErrKindModelMalformed, domain.StageValidating,
				fmt.Errorf("clarification requested without a question"))
		}
		outcome.Clarification = &domain.ClarificationRequest{
			Question:  decision.ClarificationQuestion,
			Reasoning: decision.Reasoning,
		}
	default:
		return nil, domain.WrapError(domain.ErrKindModelMalformed, domain.StageValidating,
			fmt.Errorf("unknown validation status %q", decision.Status))
	}

	v.logger.Info(ctx, "topic validated", map[string]interface{}{
		"status":       string(outcome.Status),
		"total_tokens": usage.TotalTokens,
	})

	return outcome, nil
}
