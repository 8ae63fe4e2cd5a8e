package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/deepscout/deepscout/pkg/agent"
	"github.com/deepscout/deepscout/pkg/config"
	"github.com/deepscout/deepscout/pkg/domain"
	"github.com/deepscout/deepscout/pkg/llm"
	"github.com/deepscout/deepscout/pkg/observability"
	"github.com/deepscout/deepscout/pkg/pipeline"
	"github.com/deepscout/deepscout/pkg/retrieval"
	"github.com/deepscout/deepscout/pkg/server"
	"github.com/deepscout/deepscout/pkg/state"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"

	telemetry *observability.Telemetry
	metrics   *observability.Metrics
)

func main() {
	var (
		configPath = flag.String("config", "configs/default.yaml", "Path to configuration file")
		version    = flag.Bool("version", false, "Show version information")
		apiMode    = flag.Bool("api", false, "Run in API server mode")
		topic      = flag.String("topic", "", "Research topic (for CLI mode)")
	)
	flag.Parse()

	if *version {
		fmt.Printf("deepscout\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	// .env is optional; env overrides are applied during config load
	_ = godotenv.Load()

	cfg := config.LoadOrDefault(*configPath)
	observability.SetMinLevel(observability.ParseLevel(cfg.Observability.Logging.Level))

	ctx := context.Background()
	if err := initObservability(cfg); err != nil {
		log.Fatalf("Failed to initialize observability: %v", err)
	}
	defer shutdownObservability(ctx)

	if err := run(ctx, cfg, *apiMode, *topic); err != nil {
		log.Fatalf("deepscout failed: %v", err)
	}
}

func initObservability(cfg *config.Config) error {
	telConfig := &observability.TelemetryConfig{
		ServiceName:    "deepscout",
		ServiceVersion: Version,
		Environment:    getEnvironment(),
		OTLPEndpoint:   cfg.Observability.Tracing.Endpoint,
		PrometheusPort: cfg.Observability.Metrics.Port,
		SamplingRate:   cfg.Observability.Tracing.SamplingRate,
		EnableTracing:  cfg.Observability.Tracing.Enabled,
		EnableMetrics:  cfg.Observability.Metrics.Enabled,
	}

	var err error
	telemetry, err = observability.NewTelemetry(telConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	if cfg.Observability.Metrics.Enabled {
		metrics, err = observability.NewMetrics(telemetry.Meter())
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}
	return nil
}

func shutdownObservability(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down telemetry: %v", err)
		}
	}
}

func run(ctx context.Context, cfg *config.Config, apiMode bool, topic string) error {
	modelClient := llm.NewOpenAIClient(
		cfg.LLM.BaseURL,
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		&llm.Options{
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLMTimeout(),
		},
	)

	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := modelClient.CheckHealth(healthCtx); err != nil {
		return fmt.Errorf("model endpoint health check failed: %w", err)
	}

	var client domain.ModelClient = modelClient
	if telemetry != nil && metrics != nil {
		instrumented, err := llm.NewInstrumentedClient(modelClient, telemetry, metrics, cfg.LLM.Model)
		if err != nil {
			return fmt.Errorf("failed to instrument model client: %w", err)
		}
		client = instrumented
	}

	searcher, err := retrieval.NewSearcher(cfg.Retrieval)
	if err != nil {
		return fmt.Errorf("failed to build searcher: %w", err)
	}
	if telemetry != nil && metrics != nil {
		instrumented, err := retrieval.NewInstrumentedSearcher(searcher, telemetry, metrics, cfg.Retrieval.Provider)
		if err != nil {
			return fmt.Errorf("failed to instrument searcher: %w", err)
		}
		searcher = instrumented
	}

	orch := pipeline.New(
		pipeline.Config{
			SkipGapAnalysis:        cfg.Pipeline.SkipGapAnalysis,
			MaxGapRounds:           cfg.Pipeline.MaxGapRounds,
			MaxClarificationRounds: cfg.Pipeline.MaxClarificationRounds,
			MaxConcurrency:         cfg.Pipeline.MaxConcurrency,
			ShowPlan:               cfg.Pipeline.ShowPlan,
		},
		agent.NewQueryValidator(client),
		agent.NewResearchPlanner(client),
		agent.NewSearchExecutor(client, searcher, cfg.Retrieval.MaxResults),
		agent.NewGapAnalyzer(client),
		agent.NewReportSynthesizer(client),
	)
	orch.SetTelemetry(telemetry, metrics)

	if apiMode || cfg.Server.Enabled {
		return runAPIServer(ctx, cfg, orch)
	}
	return runCLI(ctx, cfg, orch, topic)
}

func runAPIServer(ctx context.Context, cfg *config.Config, orch *pipeline.Orchestrator) error {
	srv := server.New(cfg.Server, orch, pipeline.NewStore())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigChan:
		log.Println("Received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func runCLI(ctx context.Context, cfg *config.Config, orch *pipeline.Orchestrator, topic string) error {
	reader := bufio.NewReader(os.Stdin)

	if topic == "" {
		fmt.Print("Enter your research topic: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read topic from stdin: %w", err)
		}
		topic = strings.TrimSpace(line)
	}
	if topic == "" {
		return fmt.Errorf("no research topic provided")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	startTime := time.Now()
	run := orch.Start(ctx, topic)
	fmt.Printf("Research started (run %s)\n", run.ID())

	planShown := false
	for ev := range run.Events() {
		switch ev.Stage {
		case domain.StageAwaitingClarification:
			if ev.Snapshot.Clarification == nil {
				continue
			}
			fmt.Printf("\n%s\n", ev.Snapshot.Clarification.Question)
			fmt.Print("Your answer: ")
			line, err := reader.ReadString('\n')
			if err != nil {
				cancel()
				return fmt.Errorf("failed to read clarification answer: %w", err)
			}
			if err := run.Answer(strings.TrimSpace(line)); err != nil {
				return err
			}

		case domain.StageSearching:
			if cfg.Pipeline.ShowPlan && !planShown && ev.Snapshot.Plan != nil {
				planShown = true
				printPlan(ev.Snapshot)
			}
			if n := len(ev.Snapshot.Findings); n > 0 {
				latest := ev.Snapshot.Findings[n-1]
				fmt.Printf("  [%d answered] %s\n", n, latest.Question)
			}

		case domain.StageGapChecking:
			fmt.Printf("Checking coverage (round %d)...\n", ev.Snapshot.Iterations+1)

		case domain.StageSynthesizing:
			fmt.Println("Writing report...")
		}
	}

	if err := run.Err(); err != nil {
		return fmt.Errorf("research failed: %w", err)
	}

	report, err := run.Report()
	if err != nil {
		return err
	}

	fmt.Println("\n=== Research Report ===")
	fmt.Println(report.Body)
	if len(report.Citations) > 0 {
		fmt.Println("\nSources:")
		for i, url := range report.Citations {
			fmt.Printf("  [%d] %s\n", i+1, url)
		}
	}
	fmt.Printf("\nGenerated: %s\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Printf("Duration: %s\n", time.Since(startTime).Round(time.Second))

	return nil
}

func printPlan(snap state.Snapshot) {
	fmt.Printf("\nResearch plan (%d questions):\n", len(snap.Plan.Questions))
	subtopic := ""
	for _, q := range snap.Plan.Questions {
		if q.Subtopic != subtopic {
			subtopic = q.Subtopic
			fmt.Printf("  %s\n", subtopic)
		}
		fmt.Printf("    - %s\n", q.Text)
	}
	fmt.Println()
}

func getEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return "development"
}
