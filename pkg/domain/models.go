package domain

import (
	"time"
)

// QuestionStatus represents the lifecycle state of a research question
type QuestionStatus string

const (
	QuestionStatusPending  QuestionStatus = "pending"
	QuestionStatusAnswered QuestionStatus = "answered"
)

// Stage represents the current stage of the research pipeline
type Stage string

const (
	StageValidating            Stage = "validating"
	StageAwaitingClarification Stage = "awaiting_clarification"
	StagePlanning              Stage = "planning"
	StageSearching             Stage = "searching"
	StageGapChecking           Stage = "gap_checking"
	StageSynthesizing          Stage = "synthesizing"
	StageDone                  Stage = "done"
	StageFailed                Stage = "failed"
)

// Terminal reports whether the stage is an absorbing state.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// ResearchQuestion is a single question to be answered during a run.
// Questions originate either from the initial plan or from gap analysis.
type ResearchQuestion struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Subtopic string         `json:"subtopic,omitempty"`
	Priority int            `json:"priority"` // higher values are researched first
	Status   QuestionStatus `json:"status"`
	Origin   string         `json:"origin"` // "plan" or "gap"
}

// ResearchPlan is the ordered set of questions derived from the topic.
// It is created once per run and never modified afterwards; gap questions
// are tracked in the run state, not spliced into the plan.
type ResearchPlan struct {
	Topic     string             `json:"topic"`
	Questions []ResearchQuestion `json:"questions"` // descending priority, stable
	CreatedAt time.Time          `json:"created_at"`
}

// Citation is a single source used to answer a question
type Citation struct {
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Snippet    string    `json:"snippet,omitempty"`
	AccessedAt time.Time `json:"accessed_at"`
}

// Finding is the result of answering one research question: a summary
// plus the sources that back it. A finding with no sources and Degraded
// set records a question that could not be researched.
type Finding struct {
	QuestionID string     `json:"question_id"`
	Question   string     `json:"question"`
	Summary    string     `json:"summary"`
	Sources    []Citation `json:"sources,omitempty"`
	Degraded   bool       `json:"degraded,omitempty"`
	Iteration  int        `json:"iteration"`
	CreatedAt  time.Time  `json:"created_at"`
}

// GapReport is the gap analyzer's verdict on the accumulated findings.
// NewQuestions is empty iff Complete is true.
type GapReport struct {
	Complete     bool               `json:"complete"`
	Reasoning    string             `json:"reasoning,omitempty"`
	NewQuestions []ResearchQuestion `json:"new_questions,omitempty"`
}

// ClarificationRequest asks the user to refine their topic before the
// pipeline can proceed. It is a suspension signal, not an error.
type ClarificationRequest struct {
	Question  string `json:"question"`
	Reasoning string `json:"reasoning,omitempty"`
}

// Exchange is one user/assistant turn in the clarification dialogue
type Exchange struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ValidationStatus classifies a topic submitted for research
type ValidationStatus string

const (
	ValidationValid              ValidationStatus = "valid"
	ValidationInvalid            ValidationStatus = "invalid"
	ValidationNeedsClarification ValidationStatus = "needs_clarification"
)

// ValidationOutcome is the validator's decision about a topic
type ValidationOutcome struct {
	Status        ValidationStatus      `json:"status"`
	Reasoning     string                `json:"reasoning"`
	Clarification *ClarificationRequest `json:"clarification,omitempty"`
}

// Report is the terminal artifact of a run: a markdown body plus the
// ordered, deduplicated list of source URLs cited by the findings.
type Report struct {
	Body        string    `json:"body"`
	Citations   []string  `json:"citations"`
	GeneratedAt time.Time `json:"generated_at"`
}

// TokenUsage tracks token consumption of a model call
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// SearchContext carries run context into retrieval and summarization so
// that queries stay anchored to the overall topic.
type SearchContext struct {
	Topic     string `json:"topic"`
	Subtopic  string `json:"subtopic,omitempty"`
	Iteration int    `json:"iteration"`
}

// CitationsFrom collects source URLs across findings in production order,
// deduplicated by URL with first appearance winning.
func CitationsFrom(findings []Finding) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, f := range findings {
		for _, c := range f.Sources {
			if c.URL == "" || seen[c.URL] {
				continue
			}
			seen[c.URL] = true
			urls = append(urls, c.URL)
		}
	}
	return urls
}
