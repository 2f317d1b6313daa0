package quiz

import (
	"errors"
	"fmt"
)

var (
	ErrExtraction = errors.New("page extraction failed")
	ErrReasoning  = errors.New("reasoning failed")
	ErrSubmission = errors.New("submission failed")
)

// Stage names the step of a chain iteration that failed.
type Stage string

const (
	StageExtraction Stage = "extraction"
	StageReasoning  Stage = "reasoning"
	StageSubmission Stage = "submission"
)

// StepError wraps the cause of a failed chain step with its stage. The URL is
// kept for callers; the message carries only stage and cause because trace
// records already hold the URL.
type StepError struct {
	Stage Stage
	URL   string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{e.sentinel(), e.Err}
}

func (e *StepError) sentinel() error {
	switch e.Stage {
	case StageExtraction:
		return ErrExtraction
	case StageReasoning:
		return ErrReasoning
	default:
		return ErrSubmission
	}
}

func stepErr(stage Stage, url string, err error) error {
	return &StepError{Stage: stage, URL: url, Err: err}
}
