package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentStage wraps one pipeline stage with a span and status recording
func (t *Telemetry) InstrumentStage(ctx context.Context, runID, stage string, fn func(context.Context) error) error {
	ctx, span := t.StartSpan(ctx, fmt.Sprintf("pipeline.stage.%s", stage),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("stage", stage),
		),
	)
	defer span.End()

	startTime := time.Now()
	err := fn(ctx)
	duration := time.Since(startTime)

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.SetAttributes(
		attribute.String("status", status),
		attribute.Float64("duration.seconds", duration.Seconds()),
	)

	return err
}

// InstrumentModelCall wraps a language model call with a span and token accounting
func (t *Telemetry) InstrumentModelCall(ctx context.Context, model, agent string, fn func(context.Context) (promptTokens, completionTokens int, err error)) error {
	ctx, span := t.StartSpan(ctx, "model.complete",
		trace.WithAttributes(
			attribute.String("model.name", model),
			attribute.String("agent", agent),
		),
	)
	defer span.End()

	startTime := time.Now()
	promptTokens, completionTokens, err := fn(ctx)
	duration := time.Since(startTime)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(
			attribute.Int("model.prompt_tokens", promptTokens),
			attribute.Int("model.completion_tokens", completionTokens),
			attribute.Int("model.total_tokens", promptTokens+completionTokens),
		)
	}

	span.SetAttributes(
		attribute.Float64("duration.seconds", duration.Seconds()),
	)

	return err
}

// InstrumentSearch wraps a retrieval call with a span
func (t *Telemetry) InstrumentSearch(ctx context.Context, provider, query string, fn func(context.Context) (results int, err error)) error {
	ctx, span := t.StartSpan(ctx, "retrieval.search",
		trace.WithAttributes(
			attribute.String("retrieval.provider", provider),
			attribute.Int("query.length", len(query)),
		),
	)
	defer span.End()

	startTime := time.Now()
	results, err := fn(ctx)
	duration := time.Since(startTime)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.Int("retrieval.results", results))
	}

	span.SetAttributes(
		attribute.Float64("duration.seconds", duration.Seconds()),
	)

	return err
}

// StartRun starts the root span for one research run
func (t *Telemetry) StartRun(ctx context.Context, runID, source, topic string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "research.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.source", source),
			attribute.Int("topic.length", len(topic)),
		),
	)
}
