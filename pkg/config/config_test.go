package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/deepscout/deepscout/pkg/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()

	if cfg.LLM.Model == "" {
		t.Error("default llm model is empty")
	}
	if cfg.Retrieval.Provider != "duckduckgo" {
		t.Errorf("default retrieval provider = %v, want duckduckgo", cfg.Retrieval.Provider)
	}
	if cfg.Pipeline.MaxGapRounds != 3 {
		t.Errorf("default max_gap_rounds = %v, want 3", cfg.Pipeline.MaxGapRounds)
	}
	if cfg.Pipeline.MaxConcurrency != 1 {
		t.Errorf("default max_concurrency = %v, want 1", cfg.Pipeline.MaxConcurrency)
	}
	if cfg.Server.Enabled {
		t.Error("default server should be disabled")
	}
}

func TestLoad(t *testing.T) {
	content := `
llm:
  base_url: http://example.com/v1
  model: test-model
  temperature: 0.5
retrieval:
  provider: duckduckgo
  max_results: 3
pipeline:
  max_gap_rounds: 5
  skip_gap_analysis: true
server:
  enabled: true
  port: 9090
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.Model != "test-model" {
		t.Errorf("llm model = %v, want test-model", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature != 0.5 {
		t.Errorf("llm temperature = %v, want 0.5", cfg.LLM.Temperature)
	}
	if cfg.Retrieval.MaxResults != 3 {
		t.Errorf("retrieval max_results = %v, want 3", cfg.Retrieval.MaxResults)
	}
	if cfg.Pipeline.MaxGapRounds != 5 {
		t.Errorf("max_gap_rounds = %v, want 5", cfg.Pipeline.MaxGapRounds)
	}
	if !cfg.Pipeline.SkipGapAnalysis {
		t.Error("skip_gap_analysis = false, want true")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server port = %v, want 9090", cfg.Server.Port)
	}

	// Fields missing from the file get defaults
	if cfg.LLM.MaxTokens == 0 {
		t.Error("missing llm max_tokens did not receive a default")
	}
	if cfg.Pipeline.MaxConcurrency != 1 {
		t.Errorf("missing max_concurrency = %v, want default 1", cfg.Pipeline.MaxConcurrency)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoad_BraveRequiresAPIKey(t *testing.T) {
	content := `
retrieval:
  provider: brave
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := config.Load(path); err == nil {
		t.Error("expected validation error for brave without api_key, got nil")
	}
}

func TestLoad_UnknownProvider(t *testing.T) {
	content := `
retrieval:
  provider: altavista
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := config.Load(path); err == nil {
		t.Error("expected validation error for unknown provider, got nil")
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg := config.LoadOrDefault("/nonexistent/config.yaml")
	if cfg == nil {
		t.Fatal("LoadOrDefault returned nil")
	}
	if cfg.LLM.Model == "" {
		t.Error("fallback config missing llm model")
	}
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("LLM_MODEL", "env-model")
	t.Setenv("SEARCH_PROVIDER", "duckduckgo")

	cfg := config.LoadOrDefault("/nonexistent/config.yaml")

	if cfg.LLM.Model != "env-model" {
		t.Errorf("llm model = %v, want env-model", cfg.LLM.Model)
	}
}

func TestTimeoutHelpers(t *testing.T) {
	cfg := config.Default()

	if cfg.LLMTimeout() <= 0 {
		t.Error("LLMTimeout returned non-positive duration")
	}
	if cfg.RetrievalTimeout() <= 0 {
		t.Error("RetrievalTimeout returned non-positive duration")
	}
}
