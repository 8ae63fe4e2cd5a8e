package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/deepscout/deepscout/pkg/domain"
	"github.com/deepscout/deepscout/pkg/observability"
)

// InstrumentedClient wraps a model client with observability
type InstrumentedClient struct {
	client    domain.ModelClient
	telemetry *observability.Telemetry
	metrics   *observability.Metrics
	model     string
}

// NewInstrumentedClient creates a new instrumented model client
func NewInstrumentedClient(client domain.ModelClient, telemetry *observability.Telemetry, metrics *observability.Metrics, model string) (*InstrumentedClient, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if telemetry == nil {
		return nil, fmt.Errorf("telemetry is required")
	}
	if metrics == nil {
		return nil, fmt.Errorf("metrics is required")
	}

	return &InstrumentedClient{
		client:    client,
		telemetry: telemetry,
		metrics:   metrics,
		model:     model,
	}, nil
}

// Complete performs an instrumented chat completion
func (c *InstrumentedClient) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	caller := "free_text"
	if req.Schema != nil {
		caller = req.Schema.Name
	}

	var response *domain.Completion
	startTime := time.Now()

	err := c.telemetry.InstrumentModelCall(ctx, c.model, caller, func(ctx context.Context) (int, int, error) {
		var callErr error
		response, callErr = c.client.Complete(ctx, req)
		if callErr != nil {
			return 0, 0, callErr
		}
		return response.Usage.PromptTokens, response.Usage.CompletionTokens, nil
	})
	if err != nil {
		return nil, err
	}

	c.metrics.RecordModelRequest(ctx, c.model,
		int64(response.Usage.PromptTokens),
		int64(response.Usage.CompletionTokens),
		time.Since(startTime))

	return response, nil
}
