package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all pipeline metrics
type Metrics struct {
	meter metric.Meter

	// Counters
	runsStartedTotal    metric.Int64Counter
	runsCompletedTotal  metric.Int64Counter
	questionsTotal      metric.Int64Counter
	gapRoundsTotal      metric.Int64Counter
	clarificationsTotal metric.Int64Counter
	modelRequestsTotal  metric.Int64Counter
	modelTokensTotal    metric.Int64Counter
	searchesTotal       metric.Int64Counter

	// Histograms
	runDuration    metric.Float64Histogram
	stageDuration  metric.Float64Histogram
	modelDuration  metric.Float64Histogram
	searchDuration metric.Float64Histogram

	// Gauge backing values
	activeRuns     metric.Int64ObservableGauge
	activeRunCount int64
}

// NewMetrics creates and initializes all metrics
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{
		meter: meter,
	}

	var err error

	m.runsStartedTotal, err = meter.Int64Counter(
		"research_runs_started_total",
		metric.WithDescription("Total number of research runs started"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.runsCompletedTotal, err = meter.Int64Counter(
		"research_runs_completed_total",
		metric.WithDescription("Total number of research runs that reached a terminal stage"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.questionsTotal, err = meter.Int64Counter(
		"research_questions_total",
		metric.WithDescription("Total number of research questions answered"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.gapRoundsTotal, err = meter.Int64Counter(
		"gap_rounds_total",
		metric.WithDescription("Total number of gap-analysis rounds executed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.clarificationsTotal, err = meter.Int64Counter(
		"clarification_requests_total",
		metric.WithDescription("Total number of clarification suspensions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.modelRequestsTotal, err = meter.Int64Counter(
		"model_requests_total",
		metric.WithDescription("Total number of language model requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.modelTokensTotal, err = meter.Int64Counter(
		"model_tokens_total",
		metric.WithDescription("Total number of language model tokens used"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.searchesTotal, err = meter.Int64Counter(
		"retrieval_searches_total",
		metric.WithDescription("Total number of retrieval searches"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.runDuration, err = meter.Float64Histogram(
		"research_run_duration_seconds",
		metric.WithDescription("Duration of research runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.stageDuration, err = meter.Float64Histogram(
		"pipeline_stage_duration_seconds",
		metric.WithDescription("Duration of pipeline stages in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.modelDuration, err = meter.Float64Histogram(
		"model_request_duration_seconds",
		metric.WithDescription("Duration of language model requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.searchDuration, err = meter.Float64Histogram(
		"retrieval_search_duration_seconds",
		metric.WithDescription("Duration of retrieval searches in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.activeRuns, err = meter.Int64ObservableGauge(
		"active_research_runs",
		metric.WithDescription("Number of research runs in flight"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.activeRunCount)
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordRunStarted records a new research run
func (m *Metrics) RecordRunStarted(ctx context.Context, source string) {
	m.runsStartedTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("source", source),
		),
	)
	m.activeRunCount++
}

// RecordRunComplete records a run reaching DONE or FAILED
func (m *Metrics) RecordRunComplete(ctx context.Context, duration time.Duration, status string) {
	m.runsCompletedTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", status),
		),
	)
	m.runDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("status", status),
		),
	)
	m.activeRunCount--
}

// RecordQuestionAnswered records one answered research question
func (m *Metrics) RecordQuestionAnswered(ctx context.Context, origin string, degraded bool) {
	status := "ok"
	if degraded {
		status = "degraded"
	}
	m.questionsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("origin", origin),
			attribute.String("status", status),
		),
	)
}

// RecordGapRound records one gap-analysis round
func (m *Metrics) RecordGapRound(ctx context.Context, complete bool, newQuestions int) {
	m.gapRoundsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.Bool("complete", complete),
			attribute.Int("new_questions", newQuestions),
		),
	)
}

// RecordClarification records a clarification suspension
func (m *Metrics) RecordClarification(ctx context.Context) {
	m.clarificationsTotal.Add(ctx, 1)
}

// RecordStage records the duration of one pipeline stage
func (m *Metrics) RecordStage(ctx context.Context, stage string, duration time.Duration, status string) {
	m.stageDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("status", status),
		),
	)
}

// RecordModelRequest records a language model request
func (m *Metrics) RecordModelRequest(ctx context.Context, model string, promptTokens, completionTokens int64, duration time.Duration) {
	m.modelRequestsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("model", model),
		),
	)

	m.modelTokensTotal.Add(ctx, promptTokens+completionTokens,
		metric.WithAttributes(
			attribute.String("model", model),
		),
	)

	m.modelDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("model", model),
		),
	)
}

// RecordSearch records one retrieval search
func (m *Metrics) RecordSearch(ctx context.Context, provider string, duration time.Duration, results int, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	m.searchesTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
			attribute.Int("results", results),
		),
	)

	m.searchDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// GetActiveRunCount returns the current number of runs in flight
func (m *Metrics) GetActiveRunCount() int64 {
	return m.activeRunCount
}
