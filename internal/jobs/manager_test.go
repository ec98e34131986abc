package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisper-transcriber/internal/domain"
)

// TestManagerLifecycle verifies normal progression to done state.
func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	require.False(t, m.IsRunning(), "new manager should be idle")

	require.NoError(t, m.Start("run-1", 2))
	require.True(t, m.IsRunning())
	assert.Equal(t, 2, m.Current().FileCount)

	require.NoError(t, m.Finish("run-1", ""))
	assert.Equal(t, domain.RunStatusDone, m.Current().Status)
	assert.False(t, m.IsRunning())

	require.NoError(t, m.Start("run-2", 1))
	assert.Equal(t, "run-2", m.Current().ID)
}

// TestManagerRejectsSecondStart checks the single-run guard.
func TestManagerRejectsSecondStart(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Start("run-1", 1))
	assert.ErrorIs(t, m.Start("run-2", 1), ErrRunActive)
}

// TestManagerFinishFailure records the error message.
func TestManagerFinishFailure(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Start("run-1", 1))
	require.NoError(t, m.Finish("run-1", "ffmpeg failed"))

	current := m.Current()
	assert.Equal(t, domain.RunStatusFailed, current.Status)
	assert.Equal(t, "ffmpeg failed", current.Error)

	assert.ErrorIs(t, m.Finish("run-1", ""), ErrNoRunningJob)
}

// TestManagerFinishRejectsStaleRun ignores completions from an older run ID.
func TestManagerFinishRejectsStaleRun(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Start("run-2", 1))
	assert.Error(t, m.Finish("run-1", ""))
	assert.True(t, m.IsRunning())
}

// TestManagerReset returns to idle.
func TestManagerReset(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Start("run-1", 1))
	m.Reset()
	assert.Equal(t, domain.RunStatusIdle, m.Current().Status)
}
