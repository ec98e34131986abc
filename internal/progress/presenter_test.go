package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisper-transcriber/internal/jobs"
)

type recordingView struct {
	snapshots []Snapshot
}

func (v *recordingView) Render(s Snapshot) {
	v.snapshots = append(v.snapshots, s)
}

func (v *recordingView) last() Snapshot {
	return v.snapshots[len(v.snapshots)-1]
}

type fakeRuns struct {
	runID   string
	message string
	calls   int
}

func (f *fakeRuns) Finish(runID, errMessage string) error {
	f.calls++
	f.runID = runID
	f.message = errMessage
	return nil
}

func push(t *testing.T, q *jobs.Queue, events ...jobs.Event) {
	t.Helper()
	for _, e := range events {
		_, err := q.Push(e)
		require.NoError(t, err)
	}
}

func TestTickWithoutEventsRendersIdle(t *testing.T) {
	q := jobs.NewQueue("r")
	view := &recordingView{}
	p := NewPresenter("r", 1, q, view, Options{})

	assert.False(t, p.Tick(50*time.Millisecond))
	require.Len(t, view.snapshots, 1)
	assert.Equal(t, 0.0, view.last().Percent)
	assert.Equal(t, ModeIdle, view.last().Mode)
}

func TestTickTracksTwoFileRun(t *testing.T) {
	q := jobs.NewQueue("r")
	view := &recordingView{}
	runs := &fakeRuns{}
	bus := jobs.NewEventBus(100)
	var finished []Snapshot
	p := NewPresenter("r", 2, q, view, Options{
		Bus:      bus,
		Runs:     runs,
		OnFinish: func(s Snapshot) { finished = append(finished, s) },
	})

	push(t, q, jobs.ChunkTarget(0, 50))
	p.Tick(time.Second)
	assert.InDelta(t, 4, view.last().Percent, 1e-9)
	assert.Equal(t, ModeEasing, view.last().Mode)
	assert.Equal(t, 50.0, view.last().FilePercent)

	push(t, q, jobs.ChunkDone(0))
	p.Tick(500 * time.Millisecond)
	assert.InDelta(t, 24, view.last().Percent, 1e-9, "catch-up toward 25% floor")
	assert.Equal(t, ModeCatchingUp, view.last().Mode)

	push(t, q, jobs.ChunkTarget(0, 100), jobs.ChunkDone(0), jobs.FileDone(0, "a.mp3", "/out/a_t.txt", "a_t.txt"))
	p.Tick(100 * time.Millisecond)
	s := view.last()
	assert.Equal(t, 1, s.FilesDone)
	assert.Equal(t, 1, s.FileIndex)
	require.Len(t, s.Completed, 1)
	assert.Equal(t, "a.mp3", s.Completed[0].InputName)
	assert.Equal(t, "a_t.txt", s.Completed[0].OutputName)
	assert.LessOrEqual(t, s.Percent, 50.0)

	push(t, q, jobs.ChunkTarget(1, 100), jobs.ChunkDone(1), jobs.FileDone(1, "b.mp3", "/out/b_t.txt", "b_t.txt"), jobs.DoneAll())
	assert.True(t, p.Tick(10*time.Millisecond))
	s = view.last()
	assert.True(t, s.Finished)
	assert.Equal(t, 100.0, s.Percent)
	assert.Empty(t, s.Error)
	assert.Len(t, s.Completed, 2)

	assert.Equal(t, 1, runs.calls)
	assert.Equal(t, "r", runs.runID)
	assert.Empty(t, runs.message)
	require.Len(t, finished, 1)
	assert.Len(t, bus.Since("r", 0), 9)

	assert.True(t, p.Tick(time.Second))
	assert.Equal(t, 1, runs.calls, "finish is reported once")
}

func TestTickDisplayedPercentNeverDecreases(t *testing.T) {
	q := jobs.NewQueue("r")
	view := &recordingView{}
	p := NewPresenter("r", 3, q, view, Options{})

	for file := 0; file < 3; file++ {
		for _, pct := range []float64{30, 60, 100} {
			push(t, q, jobs.ChunkTarget(file, pct))
			p.Tick(200 * time.Millisecond)
			push(t, q, jobs.ChunkDone(file))
			p.Tick(30 * time.Millisecond)
		}
		push(t, q, jobs.FileDone(file, "in", "/out", "out"))
		p.Tick(30 * time.Millisecond)
	}
	push(t, q, jobs.DoneAll())
	p.Tick(30 * time.Millisecond)

	prev := 0.0
	for _, s := range view.snapshots {
		assert.GreaterOrEqual(t, s.Percent, prev)
		prev = s.Percent
	}
	assert.Equal(t, 100.0, prev)
}

func TestTickErrorKeepsProgressAndReportsFailure(t *testing.T) {
	q := jobs.NewQueue("r")
	view := &recordingView{}
	runs := &fakeRuns{}
	p := NewPresenter("r", 2, q, view, Options{Runs: runs})

	push(t, q, jobs.ChunkTarget(0, 100), jobs.ChunkDone(0), jobs.FileDone(0, "a", "/o/a", "a"))
	p.Tick(time.Second)
	before := view.last().Percent

	push(t, q, jobs.ChunkTarget(1, 40), jobs.Failed("extracting: boom"))
	assert.True(t, p.Tick(10*time.Millisecond))

	s := view.last()
	assert.True(t, s.Finished)
	assert.Equal(t, "extracting: boom", s.Error)
	assert.GreaterOrEqual(t, s.Percent, before)
	assert.Less(t, s.Percent, 100.0)
	assert.Equal(t, "extracting: boom", runs.message)
}

func TestRunStopsAfterTerminalEvent(t *testing.T) {
	q := jobs.NewQueue("r")
	view := &recordingView{}
	p := NewPresenter("r", 1, q, view, Options{PollInterval: time.Millisecond})

	go func() {
		_, _ = q.Push(jobs.ChunkTarget(0, 100))
		_, _ = q.Push(jobs.ChunkDone(0))
		_, _ = q.Push(jobs.FileDone(0, "a", "/o/a", "a"))
		_, _ = q.Push(jobs.DoneAll())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx))
	assert.True(t, view.last().Finished)
}

func TestRunHonorsContext(t *testing.T) {
	q := jobs.NewQueue("r")
	p := NewPresenter("r", 1, q, nil, Options{PollInterval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Run(ctx), context.Canceled)
}
