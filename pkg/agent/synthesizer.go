package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deepscout/deepscout/pkg/domain"
	"github.com/deepscout/deepscout/pkg/observability"
)

// ReportSynthesizer turns accumulated findings into the final markdown
// report. Citations are collected deterministically from the findings
// rather than trusting the model's bibliography.
type ReportSynthesizer struct {
	client domain.ModelClient
	logger observability.Logger
}

// NewReportSynthesizer creates a new report synthesizer
func NewReportSynthesizer(client domain.ModelClient) *ReportSynthesizer {
	return &ReportSynthesizer{
		client: client,
		logger: observability.NewStructuredLogger("agent.synthesizer"),
	}
}

// Synthesize generates the report. Synthesis failures are fatal: a run
// that cannot produce a report has failed.
func (s *ReportSynthesizer) Synthesize(ctx context.Context, topic string, plan *domain.ResearchPlan, findings []domain.Finding) (*domain.Report, error) {
	if len(findings) == 0 {
		return nil, domain.WrapError(domain.ErrKindSynthesis, domain.StageSynthesizing,
			fmt.Errorf("no findings to synthesize"))
	}

	citations := domain.CitationsFrom(findings)

	s.logger.Info(ctx, "synthesizing report", map[string]interface{}{
		"topic":     topic,
		"findings":  len(findings),
		"citations": len(citations),
	})

	completion, err := s.client.Complete(ctx, domain.CompletionRequest{
		System:      synthesizerSystemPrompt,
		User:        buildSynthesizerPrompt(topic, plan, findings, citations),
		Temperature: 0.7,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrKindSynthesis, domain.StageSynthesizing, err)
	}

	body := strings.TrimSpace(completion.Content)
	if body == "" {
		return nil, domain.WrapError(domain.ErrKindSynthesis, domain.StageSynthesizing,
			fmt.Errorf("generated report is empty"))
	}

	s.logger.Info(ctx, "report synthesized", map[string]interface{}{
		"body_length":  len(body),
		"total_tokens": completion.Usage.TotalTokens,
	})

	return &domain.Report{
		Body:        body,
		Citations:   citations,
		GeneratedAt: time.Now(),
	}, nil
}
