package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"whisper-transcriber/internal/domain"
)

// ErrRunActive is returned when starting a second run or editing inputs mid-run.
var ErrRunActive = errors.New("transcription run already active")

// ErrNoRunningJob is returned when finishing while idle.
var ErrNoRunningJob = errors.New("no running transcription run")

// Manager tracks the single allowed active run and its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Run
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Run{
			Status: domain.RunStatusIdle,
		},
	}
}

// Start records a new run and moves it to running state.
func (m *Manager) Start(runID string, fileCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Status == domain.RunStatusRunning {
		return ErrRunActive
	}

	m.current = domain.Run{
		ID:        runID,
		Status:    domain.RunStatusRunning,
		FileCount: fileCount,
		StartedAt: time.Now().UTC(),
	}
	return nil
}

// Finish moves the active run to done or failed. A non-empty message marks failure.
func (m *Manager) Finish(runID, errMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Status != domain.RunStatusRunning {
		return ErrNoRunningJob
	}
	if m.current.ID != runID {
		return fmt.Errorf("finish run %s: active run is %s", runID, m.current.ID)
	}

	to := domain.RunStatusDone
	if errMessage != "" {
		to = domain.RunStatusFailed
	}
	if !isValidTransition(m.current.Status, to) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, to)
	}
	m.current.Status = to
	m.current.Error = errMessage
	return nil
}

// Current returns a snapshot of the current run.
func (m *Manager) Current() domain.Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reset clears run metadata and returns manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Run{Status: domain.RunStatusIdle}
}

// IsRunning reports whether a run is in progress.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Status == domain.RunStatusRunning
}

// isValidTransition enforces the allowed run state machine edges.
func isValidTransition(from, to domain.RunStatus) bool {
	switch from {
	case domain.RunStatusIdle:
		return to == domain.RunStatusRunning
	case domain.RunStatusRunning:
		return to == domain.RunStatusDone || to == domain.RunStatusFailed
	case domain.RunStatusDone, domain.RunStatusFailed:
		return to == domain.RunStatusRunning || to == domain.RunStatusIdle
	default:
		return false
	}
}
