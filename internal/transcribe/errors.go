package transcribe

import (
	"fmt"

	"whisper-transcriber/internal/media"
)

// Pipeline stages reported in PipelineError.Stage.
const (
	StageEnvironment  = "environment"
	StageEngine       = "engine"
	StageProbing      = "probing"
	StageExtracting   = "extracting"
	StageTranscribing = "transcribing"
	StageExporting    = "exporting"
)

// PipelineError is a stage-aware error with optional command context.
type PipelineError struct {
	Stage      string           `json:"stage"`
	Message    string           `json:"message"`
	File       string           `json:"file,omitempty"`
	CommandLog media.CommandLog `json:"commandLog"`
	Err        error            `json:"-"`
}

// Error formats pipeline failures for logs and UI.
func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: %s", e.Stage, e.Message)
	if e.File != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.File)
	}
	if e.CommandLog.Command == "" {
		return msg
	}

	return fmt.Sprintf(
		"%s (cmd=%s exit=%d)",
		msg,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
