package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures
type ErrorKind string

const (
	ErrKindValidation     ErrorKind = "validation_failure"
	ErrKindPlanning       ErrorKind = "planning_failure"
	ErrKindRetrieval      ErrorKind = "retrieval_failure"
	ErrKindSynthesis      ErrorKind = "synthesis_failure"
	ErrKindModelUnavail   ErrorKind = "model_unavailable"
	ErrKindModelMalformed ErrorKind = "model_malformed_response"
)

// PipelineError carries enough context to report which stage and, for
// per-question failures, which question a failure originated from.
// Planning and synthesis failures are fatal to a run; retrieval failures
// are recorded per question and the run continues.
type PipelineError struct {
	Kind       ErrorKind
	Stage      Stage
	QuestionID string
	Err        error
}

func (e *PipelineError) Error() string {
	if e.QuestionID != "" {
		return fmt.Sprintf("%s at %s (question %s): %v", e.Kind, e.Stage, e.QuestionID, e.Err)
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s at %s: %v", e.Kind, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// WrapError wraps err with a kind and stage
func WrapError(kind ErrorKind, stage Stage, err error) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, Err: err}
}

// WrapQuestionError wraps a per-question failure
func WrapQuestionError(kind ErrorKind, stage Stage, questionID string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, QuestionID: questionID, Err: err}
}

// KindOf extracts the error kind from err, or "" when err is not a
// PipelineError anywhere in its chain.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// Fatal reports whether the error kind must abort a run
func Fatal(kind ErrorKind) bool {
	switch kind {
	case ErrKindPlanning, ErrKindSynthesis, ErrKindValidation:
		return true
	}
	return false
}
