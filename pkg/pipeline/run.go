package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deepscout/deepscout/pkg/domain"
	"github.com/deepscout/deepscout/pkg/state"
)

// Event is emitted on every stage transition and search progress update
// so a caller can render progress.
type Event struct {
	RunID     string         `json:"run_id"`
	Stage     domain.Stage   `json:"stage"`
	Snapshot  state.Snapshot `json:"snapshot"`
	Timestamp time.Time      `json:"timestamp"`
}

// Run is the handle to one pipeline execution. The orchestrator drives it
// on its own goroutine; the handle exposes progress events, the
// clarification resume point, and the terminal result.
type Run struct {
	id    string
	state *state.ResearchState

	events  chan Event
	answers chan string
	done    chan struct{}

	mu       sync.Mutex
	eventLog []Event

	forceReport atomic.Bool

	// stage timing for metrics, touched only by the pipeline goroutine
	prevStage domain.Stage
	prevStart time.Time
}

func newRun(id, topic string) *Run {
	return &Run{
		id:        id,
		state:     state.New(id, topic),
		events:    make(chan Event, 64),
		answers:   make(chan string, 1),
		done:      make(chan struct{}),
		prevStage: domain.StageValidating,
		prevStart: time.Now(),
	}
}

// ID returns the run identifier
func (r *Run) ID() string {
	return r.id
}

// Events returns the stream of progress events. The channel is closed
// when the run reaches a terminal stage.
func (r *Run) Events() <-chan Event {
	return r.events
}

// EventLog returns a copy of every event emitted so far
func (r *Run) EventLog() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	log := make([]Event, len(r.eventLog))
	copy(log, r.eventLog)
	return log
}

// Snapshot returns the current state of the run
func (r *Run) Snapshot() state.Snapshot {
	return r.state.Snapshot()
}

// Stage returns the current pipeline stage
func (r *Run) Stage() domain.Stage {
	return r.state.Stage()
}

// Answer resumes a run suspended for clarification. It fails when the
// run is not suspended, so an answer can never be consumed twice.
func (r *Run) Answer(answer string) error {
	if answer == "" {
		return fmt.Errorf("clarification answer is empty")
	}
	if r.state.Stage() != domain.StageAwaitingClarification {
		return fmt.Errorf("run %s is not awaiting clarification", r.id)
	}

	select {
	case r.answers <- answer:
		return nil
	default:
		return fmt.Errorf("run %s already received an answer", r.id)
	}
}

// ForceReport asks the pipeline to skip further gap analysis and
// synthesize a report from the findings it already has. It takes effect
// at the next loop boundary; a run that already terminated is unchanged.
func (r *Run) ForceReport() error {
	if r.state.Stage().Terminal() {
		return fmt.Errorf("run %s already finished", r.id)
	}
	r.forceReport.Store(true)
	return nil
}

func (r *Run) forceRequested() bool {
	return r.forceReport.Load()
}

// Wait blocks until the run reaches a terminal stage or the context
// expires, and returns the run's fatal error, if any.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.state.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Report returns the terminal report, or an error while the run is
// still in flight or has failed.
func (r *Run) Report() (*domain.Report, error) {
	if err := r.state.Err(); err != nil {
		return nil, err
	}
	report := r.state.Report()
	if report == nil {
		return nil, fmt.Errorf("run %s has no report yet", r.id)
	}
	return report, nil
}

// Err returns the fatal error that moved the run to FAILED, if any
func (r *Run) Err() error {
	return r.state.Err()
}

// emit records an event and delivers it without ever blocking the
// pipeline: a consumer that stops reading drops events, the log keeps
// them all.
func (r *Run) emit(stage domain.Stage) {
	ev := Event{
		RunID:     r.id,
		Stage:     stage,
		Snapshot:  r.state.Snapshot(),
		Timestamp: time.Now(),
	}

	r.mu.Lock()
	r.eventLog = append(r.eventLog, ev)
	r.mu.Unlock()

	select {
	case r.events <- ev:
	default:
	}
}

func (r *Run) finish() {
	close(r.events)
	close(r.done)
}
