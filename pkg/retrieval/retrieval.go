// Package retrieval provides web search providers behind the Searcher
// interface. DuckDuckGo requires no credentials; Brave needs an API key.
package retrieval

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/deepscout/deepscout/pkg/config"
	"github.com/deepscout/deepscout/pkg/domain"
	"github.com/deepscout/deepscout/pkg/observability"
)

// NewSearcher constructs the provider named in the configuration
func NewSearcher(cfg config.RetrievalConfig) (domain.Searcher, error) {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	switch cfg.Provider {
	case "duckduckgo":
		return NewDuckDuckGoWithClient(client), nil
	case "brave":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("brave provider requires an api key")
		}
		return NewBraveWithClient(cfg.APIKey, client), nil
	default:
		return nil, fmt.Errorf("unknown retrieval provider: %s", cfg.Provider)
	}
}

// InstrumentedSearcher wraps a searcher with observability
type InstrumentedSearcher struct {
	searcher  domain.Searcher
	telemetry *observability.Telemetry
	metrics   *observability.Metrics
	provider  string
}

// NewInstrumentedSearcher creates a new instrumented searcher
func NewInstrumentedSearcher(searcher domain.Searcher, telemetry *observability.Telemetry, metrics *observability.Metrics, provider string) (*InstrumentedSearcher, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if telemetry == nil {
		return nil, fmt.Errorf("telemetry is required")
	}
	if metrics == nil {
		return nil, fmt.Errorf("metrics is required")
	}

	return &InstrumentedSearcher{
		searcher:  searcher,
		telemetry: telemetry,
		metrics:   metrics,
		provider:  provider,
	}, nil
}

// Search performs an instrumented search
func (s *InstrumentedSearcher) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	var results []domain.SearchResult
	var searchErr error

	startTime := time.Now()
	instErr := s.telemetry.InstrumentSearch(ctx, s.provider, query, func(ctx context.Context) (int, error) {
		results, searchErr = s.searcher.Search(ctx, query, opts)
		return len(results), searchErr
	})
	duration := time.Since(startTime)

	s.metrics.RecordSearch(ctx, s.provider, duration, len(results), instErr == nil)

	return results, searchErr
}
