package state

import (
	"sort"
	"sync"
	"time"

	"github.com/deepscout/deepscout/pkg/domain"
)

// ResearchState holds everything accumulated during one pipeline run.
// It is owned by the orchestrator; all mutation goes through its methods
// under the internal lock.
type ResearchState struct {
	mu            sync.RWMutex
	runID         string
	topic         string
	history       []domain.Exchange
	plan          *domain.ResearchPlan
	findings      []domain.Finding
	pending       []domain.ResearchQuestion
	answered      map[string]bool
	iterations    int // gap-check rounds completed
	stage         domain.Stage
	clarification *domain.ClarificationRequest
	err           error
	report        *domain.Report
	createdAt     time.Time
	updatedAt     time.Time
}

// New creates the state for a fresh run. The topic is the raw user input;
// it is replaced by the accepted topic once validation succeeds.
func New(runID, topic string) *ResearchState {
	now := time.Now()
	return &ResearchState{
		runID:     runID,
		topic:     topic,
		answered:  make(map[string]bool),
		stage:     domain.StageValidating,
		history:   []domain.Exchange{{Role: "user", Content: topic}},
		createdAt: now,
		updatedAt: now,
	}
}

// RunID returns the run identifier
func (s *ResearchState) RunID() string {
	return s.runID
}

// Topic returns the current research topic
func (s *ResearchState) Topic() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.topic
}

// SetTopic records the accepted topic after validation
func (s *ResearchState) SetTopic(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topic = topic
	s.updatedAt = time.Now()
}

// Stage returns the current pipeline stage
func (s *ResearchState) Stage() domain.Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stage
}

// SetStage transitions the run to a new stage
func (s *ResearchState) SetStage(stage domain.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = stage
	s.updatedAt = time.Now()
}

// SetClarification records the pending clarification request; nil clears it
func (s *ResearchState) SetClarification(c *domain.ClarificationRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clarification = c
	s.updatedAt = time.Now()
}

// Clarification returns the pending clarification request, if any
func (s *ResearchState) Clarification() *domain.ClarificationRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clarification
}

// AppendExchange adds a turn to the clarification dialogue
func (s *ResearchState) AppendExchange(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, domain.Exchange{Role: role, Content: content})
	s.updatedAt = time.Now()
}

// History returns a copy of the clarification dialogue
func (s *ResearchState) History() []domain.Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := make([]domain.Exchange, len(s.history))
	copy(history, s.history)
	return history
}

// SetPlan stores the plan and seeds the pending queue from its questions.
// The plan itself is never modified afterwards.
func (s *ResearchState) SetPlan(plan *domain.ResearchPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plan = plan
	s.pending = make([]domain.ResearchQuestion, len(plan.Questions))
	copy(s.pending, plan.Questions)
	s.sortPendingLocked()
	s.updatedAt = time.Now()
}

// Plan returns the immutable research plan
func (s *ResearchState) Plan() *domain.ResearchPlan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plan
}

// Enqueue appends questions to the pending queue, skipping any whose text
// duplicates a question already pending or answered. The queue stays
// ordered by descending priority with insertion order breaking ties.
func (s *ResearchState) Enqueue(questions []domain.ResearchQuestion) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pendingText := make(map[string]bool, len(s.pending))
	for _, q := range s.pending {
		pendingText[q.Text] = true
	}
	for _, f := range s.findings {
		pendingText[f.Question] = true
	}

	added := 0
	for _, q := range questions {
		if pendingText[q.Text] {
			continue
		}
		pendingText[q.Text] = true
		s.pending = append(s.pending, q)
		added++
	}
	s.sortPendingLocked()
	s.updatedAt = time.Now()
	return added
}

// sortPendingLocked orders the queue by descending priority; the sort is
// stable so equal priorities keep creation order (FIFO).
func (s *ResearchState) sortPendingLocked() {
	sort.SliceStable(s.pending, func(i, j int) bool {
		return s.pending[i].Priority > s.pending[j].Priority
	})
}

// NextPending pops the head of the pending queue, or nil when empty
func (s *ResearchState) NextPending() *domain.ResearchQuestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	q := s.pending[0]
	s.pending = s.pending[1:]
	s.updatedAt = time.Now()
	return &q
}

// DrainPending pops every pending question in queue order
func (s *ResearchState) DrainPending() []domain.ResearchQuestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.pending
	s.pending = nil
	s.updatedAt = time.Now()
	return batch
}

// PendingCount returns the number of queued questions
func (s *ResearchState) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// MinPendingPriority returns the lowest priority among queued questions
// and whether any question is pending at all.
func (s *ResearchState) MinPendingPriority() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.pending) == 0 {
		return 0, false
	}
	min := s.pending[0].Priority
	for _, q := range s.pending[1:] {
		if q.Priority < min {
			min = q.Priority
		}
	}
	return min, true
}

// AddFinding records a finding and marks its question answered. A question
// is never answered twice; a duplicate finding is dropped.
func (s *ResearchState) AddFinding(f domain.Finding) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answered[f.QuestionID] {
		return false
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	s.answered[f.QuestionID] = true
	s.findings = append(s.findings, f)
	s.updatedAt = time.Now()
	return true
}

// AddFindings records a batch of findings preserving the given order
func (s *ResearchState) AddFindings(findings []domain.Finding) {
	for _, f := range findings {
		s.AddFinding(f)
	}
}

// Findings returns a copy of the findings in production order
func (s *ResearchState) Findings() []domain.Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	findings := make([]domain.Finding, len(s.findings))
	copy(findings, s.findings)
	return findings
}

// IncrementIteration bumps the gap-round counter and returns the new value
func (s *ResearchState) IncrementIteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iterations++
	s.updatedAt = time.Now()
	return s.iterations
}

// Iterations returns the number of gap-check rounds completed
func (s *ResearchState) Iterations() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.iterations
}

// SetError records the fatal error that moved the run to FAILED
func (s *ResearchState) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	s.updatedAt = time.Now()
}

// Err returns the fatal error, if any
func (s *ResearchState) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// SetReport stores the terminal report
func (s *ResearchState) SetReport(r *domain.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = r
	s.updatedAt = time.Now()
}

// Report returns the report once synthesis has completed
func (s *ResearchState) Report() *domain.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}

// Snapshot is an immutable view of the run state for events and the API
type Snapshot struct {
	RunID         string                       `json:"run_id"`
	Topic         string                       `json:"topic"`
	Stage         domain.Stage                 `json:"stage"`
	Plan          *domain.ResearchPlan         `json:"plan,omitempty"`
	Findings      []domain.Finding             `json:"findings"`
	Pending       int                          `json:"pending_questions"`
	Iterations    int                          `json:"iterations"`
	Clarification *domain.ClarificationRequest `json:"clarification,omitempty"`
	Error         string                       `json:"error,omitempty"`
	CreatedAt     time.Time                    `json:"created_at"`
	UpdatedAt     time.Time                    `json:"updated_at"`
}

// Snapshot captures the current state under the read lock
func (s *ResearchState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	findings := make([]domain.Finding, len(s.findings))
	copy(findings, s.findings)

	snap := Snapshot{
		RunID:         s.runID,
		Topic:         s.topic,
		Stage:         s.stage,
		Plan:          s.plan,
		Findings:      findings,
		Pending:       len(s.pending),
		Iterations:    s.iterations,
		Clarification: s.clarification,
		CreatedAt:     s.createdAt,
		UpdatedAt:     s.updatedAt,
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}
