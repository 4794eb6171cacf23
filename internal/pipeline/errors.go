package pipeline

import "fmt"

// Stage names one of the supervised processes.
type Stage string

const (
	StageExtractor  Stage = "extractor"
	StageTranscoder Stage = "transcoder"
)

// StartError means a process failed to start (resolution or execution
// error). It is surfaced immediately and never retried automatically.
type StartError struct {
	Stage Stage
	Err   error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Stage, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// RunError means a process exited non-zero. It is only surfaced after the
// process fully exited; there is no partial-success reporting.
type RunError struct {
	Stage  Stage
	Code   int
	Stderr string
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Stage, e.Code)
}

// ParseError means the metadata document could not be decoded. Both raw
// streams are attached to aid diagnosis.
type ParseError struct {
	Err    error
	Stdout string
	Stderr string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse metadata: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
