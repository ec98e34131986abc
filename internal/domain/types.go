package domain

import "time"

// RunStatus tracks the lifecycle of one multi-file transcription run.
type RunStatus string

const (
	RunStatusIdle    RunStatus = "idle"
	RunStatusRunning RunStatus = "running"
	RunStatusDone    RunStatus = "done"
	RunStatusFailed  RunStatus = "failed"
)

// Settings contains user-selectable runtime configuration.
type Settings struct {
	ModelDir  string `json:"modelDir"`
	OutputDir string `json:"outputDir"`
	Language  string `json:"language"`
}

// Run stores the current run identity, its file count, and lifecycle status.
type Run struct {
	ID        string    `json:"id"`
	Status    RunStatus `json:"status"`
	FileCount int       `json:"fileCount"`
	StartedAt time.Time `json:"startedAt,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// MediaFile is one input accepted into the pending set.
type MediaFile struct {
	Path string `json:"path"`
	Name string `json:"name"`
}
