// Package agent implements the five pipeline agents: query validation,
// planning, search execution, gap analysis, and report synthesis. Each
// agent wraps a single structured model call.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/deepscout/deepscout/pkg/domain"
)

// callStructured submits a schema-constrained completion and decodes the
// response into T. Decode failures are reported as malformed-response
// errors so callers can distinguish them from transport failures.
func callStructured[T any](ctx context.Context, client domain.ModelClient, req domain.CompletionRequest) (T, domain.TokenUsage, error) {
	var decoded T

	completion, err := client.Complete(ctx, req)
	if err != nil {
		return decoded, domain.TokenUsage{}, err
	}

	content := extractJSON(completion.Content)
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		return decoded, completion.Usage, domain.WrapError(domain.ErrKindModelMalformed, "",
			fmt.Errorf("failed to decode %s response: %w", req.Schema.Name, err))
	}

	return decoded, completion.Usage, nil
}

// extractJSON strips markdown fences and surrounding prose that smaller
// models sometimes emit around a JSON object.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx >= 0 {
			content = content[:idx]
		}
		content = strings.TrimSpace(content)
	}

	if strings.HasPrefix(content, "{") {
		return content
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}

	return content
}
