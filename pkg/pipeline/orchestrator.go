// Package pipeline drives the research control loop: validation,
// planning, iterative search and gap analysis, and report synthesis.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/deepscout/deepscout/pkg/agent"
	"github.com/deepscout/deepscout/pkg/domain"
	"github.com/deepscout/deepscout/pkg/observability"
	"github.com/deepscout/deepscout/pkg/state"
	"github.com/google/uuid"
)

// Config holds the orchestrator's behavioral options
type Config struct {
	// SkipGapAnalysis goes straight to synthesis once the plan's
	// questions are answered
	SkipGapAnalysis bool
	// MaxGapRounds bounds the gap-check loop; exceeding it degrades to
	// synthesis with whatever findings exist
	MaxGapRounds int
	// MaxClarificationRounds bounds the validation loop; zero means
	// unbounded, since a human is in the loop
	MaxClarificationRounds int
	// MaxConcurrency is the number of questions researched in parallel
	// within one search phase
	MaxConcurrency int
	// ShowPlan is presentation-only: callers may render the plan before
	// searching begins
	ShowPlan bool
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() Config {
	return Config{
		MaxGapRounds:           3,
		MaxClarificationRounds: 2,
		MaxConcurrency:         1,
	}
}

// Orchestrator owns the control loop. It sequences the agents, enforces
// termination, and is the only writer of a run's state.
type Orchestrator struct {
	validator   *agent.QueryValidator
	planner     *agent.ResearchPlanner
	executor    *agent.SearchExecutor
	gapAnalyzer *agent.GapAnalyzer
	synthesizer *agent.ReportSynthesizer

	config Config
	logger observability.Logger

	telemetry *observability.Telemetry
	metrics   *observability.Metrics
}

// New creates an orchestrator over the five pipeline agents
func New(config Config, validator *agent.QueryValidator, planner *agent.ResearchPlanner, executor *agent.SearchExecutor, gapAnalyzer *agent.GapAnalyzer, synthesizer *agent.ReportSynthesizer) *Orchestrator {
	if config.MaxGapRounds <= 0 {
		config.MaxGapRounds = DefaultConfig().MaxGapRounds
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}

	return &Orchestrator{
		validator:   validator,
		planner:     planner,
		executor:    executor,
		gapAnalyzer: gapAnalyzer,
		synthesizer: synthesizer,
		config:      config,
		logger:      observability.NewStructuredLogger("pipeline.orchestrator"),
	}
}

// SetTelemetry attaches tracing and metrics. Both are optional; a nil
// telemetry leaves the pipeline unobserved but fully functional.
func (o *Orchestrator) SetTelemetry(telemetry *observability.Telemetry, metrics *observability.Metrics) {
	o.telemetry = telemetry
	o.metrics = metrics
}

// Start launches a new pipeline run and returns immediately with its
// handle. Independent runs share nothing; a suspended run never blocks
// another.
func (o *Orchestrator) Start(ctx context.Context, topic string) *Run {
	run := newRun(uuid.NewString(), topic)
	go o.execute(ctx, run)
	return run
}

func (o *Orchestrator) execute(ctx context.Context, run *Run) {
	defer run.finish()

	startTime := time.Now()
	if o.metrics != nil {
		o.metrics.RecordRunStarted(ctx, "pipeline")
	}
	if o.telemetry != nil {
		runCtx, runSpan := o.telemetry.StartRun(ctx, run.ID(), "pipeline", run.state.Topic())
		defer runSpan.End()
		ctx = runCtx
	}

	o.logger.Info(ctx, "research run started", map[string]interface{}{
		"run_id": run.ID(),
		"topic":  run.state.Topic(),
	})

	err := o.runStages(ctx, run)

	status := "done"
	if err != nil {
		status = "failed"
		o.fail(ctx, run, err)
	}
	if o.metrics != nil {
		o.metrics.RecordRunComplete(ctx, time.Since(startTime), status)
	}

	o.logger.Info(ctx, "research run finished", map[string]interface{}{
		"run_id": run.ID(),
		"status": status,
	})
}

func (o *Orchestrator) runStages(ctx context.Context, run *Run) error {
	stages := []struct {
		name string
		fn   func(context.Context, *Run) error
	}{
		{"validate", o.validate},
		{"plan", o.plan},
		{"research", o.research},
		{"synthesize", o.synthesize},
	}

	for _, stage := range stages {
		var err error
		if o.telemetry != nil {
			err = o.telemetry.InstrumentStage(ctx, run.ID(), stage.name, func(ctx context.Context) error {
				return stage.fn(ctx, run)
			})
		} else {
			err = stage.fn(ctx, run)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// validate loops between VALIDATING and the clarification suspension
// point until the topic is accepted, rejected, or the round cap is hit.
func (o *Orchestrator) validate(ctx context.Context, run *Run) error {
	st := run.state
	rounds := 0

	for {
		o.transition(ctx, run, domain.StageValidating)

		outcome, err := o.validator.Validate(ctx, st.Topic(), st.History())
		if err != nil {
			return domain.WrapError(domain.ErrKindValidation, domain.StageValidating, err)
		}

		switch outcome.Status {
		case domain.ValidationValid:
			st.SetClarification(nil)
			return nil

		case domain.ValidationInvalid:
			return domain.WrapError(domain.ErrKindValidation, domain.StageValidating,
				fmt.Errorf("topic rejected: %s", outcome.Reasoning))

		case domain.ValidationNeedsClarification:
			rounds++
			if o.config.MaxClarificationRounds > 0 && rounds > o.config.MaxClarificationRounds {
				return domain.WrapError(domain.ErrKindValidation, domain.StageValidating,
					fmt.Errorf("topic still unclear after %d clarification rounds", o.config.MaxClarificationRounds))
			}

			st.SetClarification(outcome.Clarification)
			st.AppendExchange("assistant", outcome.Clarification.Question)
			if o.metrics != nil {
				o.metrics.RecordClarification(ctx)
			}
			o.transition(ctx, run, domain.StageAwaitingClarification)

			// Suspended: nothing else executes on this run until the
			// caller answers or the context ends.
			select {
			case answer := <-run.answers:
				st.AppendExchange("user", answer)
				st.SetTopic(refineTopic(st.Topic(), answer))
				st.SetClarification(nil)
			case <-ctx.Done():
				return domain.WrapError(domain.ErrKindValidation, domain.StageAwaitingClarification, ctx.Err())
			}
		}
	}
}

// refineTopic folds a clarification answer into the topic, keeping the
// original subject so planning, gap analysis, and synthesis retain it.
func refineTopic(topic, answer string) string {
	topic = strings.TrimSpace(topic)
	answer = strings.TrimSpace(answer)
	switch {
	case topic == "":
		return answer
	case answer == "":
		return topic
	default:
		return fmt.Sprintf("%s (%s)", topic, answer)
	}
}

func (o *Orchestrator) plan(ctx context.Context, run *Run) error {
	st := run.state
	o.transition(ctx, run, domain.StagePlanning)

	plan, err := o.planner.Plan(ctx, st.Topic())
	if err != nil {
		if domain.IsKind(err, domain.ErrKindPlanning) {
			return err
		}
		return domain.WrapError(domain.ErrKindPlanning, domain.StagePlanning, err)
	}

	st.SetPlan(plan)
	return nil
}

// research alternates SEARCHING and GAP_CHECKING until the analyzer is
// satisfied, the round cap is reached, or a forced report is requested.
func (o *Orchestrator) research(ctx context.Context, run *Run) error {
	st := run.state

	for {
		o.transition(ctx, run, domain.StageSearching)
		if err := o.searchPending(ctx, run); err != nil {
			return err
		}

		if o.config.SkipGapAnalysis || run.forceRequested() {
			return nil
		}

		o.transition(ctx, run, domain.StageGapChecking)
		round := st.IncrementIteration()

		report, err := o.gapAnalyzer.Analyze(ctx, st.Topic(), st.Plan(), st.Findings())
		if err != nil {
			// Gap analysis is advisory: losing it degrades to synthesis
			// with the findings collected so far.
			o.logger.Warn(ctx, "gap analysis failed, proceeding to synthesis", map[string]interface{}{
				"run_id": run.ID(),
				"error":  err.Error(),
			})
			return nil
		}

		if o.metrics != nil {
			o.metrics.RecordGapRound(ctx, report.Complete, len(report.NewQuestions))
		}

		if report.Complete {
			o.logger.Info(ctx, "research judged complete", map[string]interface{}{
				"run_id": run.ID(),
				"rounds": round,
			})
			return nil
		}

		if round >= o.config.MaxGapRounds {
			o.logger.Warn(ctx, "gap round cap reached, synthesizing with current findings", map[string]interface{}{
				"run_id":     run.ID(),
				"max_rounds": o.config.MaxGapRounds,
			})
			return nil
		}

		added := st.Enqueue(o.prioritizeGaps(st, report.NewQuestions))
		if added == 0 {
			// Every gap duplicated an answered or queued question
			return nil
		}
	}
}

// prioritizeGaps assigns gap questions priorities strictly below any
// still-pending question so they never pre-empt the remaining plan.
func (o *Orchestrator) prioritizeGaps(st *state.ResearchState, questions []domain.ResearchQuestion) []domain.ResearchQuestion {
	base := 0
	if min, ok := st.MinPendingPriority(); ok {
		base = min
	}

	prioritized := make([]domain.ResearchQuestion, len(questions))
	for i, q := range questions {
		q.Priority = base - 1 - i
		prioritized[i] = q
	}
	return prioritized
}

// searchPending answers every queued question. Findings land in queue
// order regardless of completion order so citation ordering stays
// deterministic.
func (o *Orchestrator) searchPending(ctx context.Context, run *Run) error {
	st := run.state

	if o.config.MaxConcurrency <= 1 {
		for q := st.NextPending(); q != nil; q = st.NextPending() {
			if err := ctx.Err(); err != nil {
				return domain.WrapError(domain.ErrKindRetrieval, domain.StageSearching, err)
			}
			finding := o.executor.Execute(ctx, *q, o.searchContext(st, *q))
			o.recordFinding(ctx, run, *q, finding)
			if run.forceRequested() {
				return nil
			}
		}
		return nil
	}

	batch := st.DrainPending()
	if len(batch) == 0 {
		return nil
	}

	findings := make([]domain.Finding, len(batch))
	sem := make(chan struct{}, o.config.MaxConcurrency)
	var wg sync.WaitGroup

	for i, q := range batch {
		wg.Add(1)
		go func(i int, q domain.ResearchQuestion) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			findings[i] = o.executor.Execute(ctx, q, o.searchContext(st, q))
		}(i, q)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return domain.WrapError(domain.ErrKindRetrieval, domain.StageSearching, err)
	}

	for i, q := range batch {
		o.recordFinding(ctx, run, q, findings[i])
	}
	return nil
}

func (o *Orchestrator) searchContext(st *state.ResearchState, q domain.ResearchQuestion) domain.SearchContext {
	return domain.SearchContext{
		Topic:     st.Topic(),
		Subtopic:  q.Subtopic,
		Iteration: st.Iterations(),
	}
}

func (o *Orchestrator) recordFinding(ctx context.Context, run *Run, q domain.ResearchQuestion, finding domain.Finding) {
	if !run.state.AddFinding(finding) {
		return
	}
	if o.metrics != nil {
		o.metrics.RecordQuestionAnswered(ctx, q.Origin, finding.Degraded)
	}
	run.emit(domain.StageSearching)
}

func (o *Orchestrator) synthesize(ctx context.Context, run *Run) error {
	st := run.state
	o.transition(ctx, run, domain.StageSynthesizing)

	report, err := o.synthesizer.Synthesize(ctx, st.Topic(), st.Plan(), st.Findings())
	if err != nil {
		return err
	}

	st.SetReport(report)
	o.transition(ctx, run, domain.StageDone)
	return nil
}

// transition moves the run to a new stage, emits the observable event,
// and records the duration of the stage just left.
func (o *Orchestrator) transition(ctx context.Context, run *Run, stage domain.Stage) {
	if o.metrics != nil && run.prevStage != stage {
		status := "success"
		if stage == domain.StageFailed {
			status = "error"
		}
		o.metrics.RecordStage(ctx, string(run.prevStage), time.Since(run.prevStart), status)
	}
	run.prevStage = stage
	run.prevStart = time.Now()

	run.state.SetStage(stage)
	run.emit(stage)

	o.logger.Debug(ctx, "stage transition", map[string]interface{}{
		"run_id": run.ID(),
		"stage":  string(stage),
	})
}

func (o *Orchestrator) fail(ctx context.Context, run *Run, err error) {
	run.state.SetError(err)
	o.transition(ctx, run, domain.StageFailed)

	o.logger.Error(ctx, "research run failed", err, map[string]interface{}{
		"run_id": run.ID(),
		"kind":   string(domain.KindOf(err)),
		"fatal":  domain.Fatal(domain.KindOf(err)),
	})
}
