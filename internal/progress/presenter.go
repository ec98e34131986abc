package progress

import (
	"context"
	"time"

	"whisper-transcriber/internal/jobs"
	"whisper-transcriber/internal/logging"
)

// DefaultPollInterval is how often the presenter drains the event queue.
const DefaultPollInterval = 50 * time.Millisecond

// Source is the non-blocking consumer side of the event queue.
type Source interface {
	Drain() ([]jobs.Event, bool)
}

// RunFinisher records the terminal state of a run.
type RunFinisher interface {
	Finish(runID, errMessage string) error
}

// View renders presenter snapshots. Render is called from the presenter goroutine only.
type View interface {
	Render(Snapshot)
}

// ViewFunc adapts a function to View.
type ViewFunc func(Snapshot)

// Render calls f.
func (f ViewFunc) Render(s Snapshot) { f(s) }

// Completion marks one finished file.
type Completion struct {
	FileIndex  int    `json:"fileIndex"`
	InputName  string `json:"inputName"`
	OutputName string `json:"outputName"`
	OutputPath string `json:"outputPath"`
}

// Snapshot is the presentation state after one tick.
type Snapshot struct {
	RunID       string       `json:"runId"`
	Percent     float64      `json:"percent"`
	Mode        Mode         `json:"mode"`
	FileIndex   int          `json:"fileIndex"`
	FilePercent float64      `json:"filePercent"`
	FilesDone   int          `json:"filesDone"`
	FilesTotal  int          `json:"filesTotal"`
	Completed   []Completion `json:"completed"`
	Finished    bool         `json:"finished"`
	Error       string       `json:"error,omitempty"`
}

// Options configures a presenter.
type Options struct {
	PollInterval time.Duration
	Smoother     Smoother
	Bus          *jobs.EventBus
	Runs         RunFinisher
	OnFinish     func(Snapshot)
}

// Presenter owns all presentation state for one run. Only its own goroutine
// touches that state; the worker communicates through the queue alone.
type Presenter struct {
	runID  string
	source Source
	view   View
	opts   Options

	percent    float64
	mode       Mode
	fileIndex  int
	fileTarget float64
	fileFloor  float64
	filesDone  int
	filesTotal int
	completed  []Completion
	finished   bool
	failure    string
}

// NewPresenter builds a presenter for a run over filesTotal files.
func NewPresenter(runID string, filesTotal int, source Source, view View, opts Options) *Presenter {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Smoother == (Smoother{}) {
		opts.Smoother = DefaultSmoother()
	}
	return &Presenter{
		runID:      runID,
		source:     source,
		view:       view,
		opts:       opts,
		mode:       ModeIdle,
		filesTotal: filesTotal,
	}
}

// Run polls until a terminal event has been rendered or ctx ends.
func (p *Presenter) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if p.Tick(now.Sub(last)) {
				return nil
			}
			last = now
		}
	}
}

// Tick drains every pending event, advances the smoother by dt, and renders.
// It reports true once the run has finished.
func (p *Presenter) Tick(dt time.Duration) bool {
	if p.finished {
		return true
	}

	events, ok := p.source.Drain()
	if ok {
		if p.opts.Bus != nil {
			p.opts.Bus.Record(events...)
		}
		for _, event := range events {
			p.apply(event)
		}
	}

	target, floor := p.overall()
	if p.finished && p.failure == "" {
		p.percent, p.mode = 100, ModeIdle
	} else {
		p.percent, p.mode = p.opts.Smoother.Step(p.percent, target, floor, p.mode, dt)
	}

	snapshot := p.Snapshot()
	if p.view != nil {
		p.view.Render(snapshot)
	}
	if p.finished {
		p.finish(snapshot)
	}
	return p.finished
}

// Snapshot returns the current presentation state.
func (p *Presenter) Snapshot() Snapshot {
	return Snapshot{
		RunID:       p.runID,
		Percent:     p.percent,
		Mode:        p.mode,
		FileIndex:   p.fileIndex,
		FilePercent: p.fileTarget,
		FilesDone:   p.filesDone,
		FilesTotal:  p.filesTotal,
		Completed:   append([]Completion(nil), p.completed...),
		Finished:    p.finished,
		Error:       p.failure,
	}
}

func (p *Presenter) apply(event jobs.Event) {
	switch event.Type {
	case jobs.EventTypeChunkTarget:
		if event.FileIndex != p.fileIndex {
			p.fileIndex = event.FileIndex
			p.fileTarget, p.fileFloor = 0, 0
		}
		if event.Percent > p.fileTarget {
			p.fileTarget = event.Percent
		}
	case jobs.EventTypeChunkDone:
		p.fileFloor = p.fileTarget
	case jobs.EventTypeFileDone:
		p.filesDone++
		p.fileIndex = event.FileIndex + 1
		p.fileTarget, p.fileFloor = 0, 0
		p.completed = append(p.completed, Completion{
			FileIndex:  event.FileIndex,
			InputName:  event.InputName,
			OutputName: event.OutputName,
			OutputPath: event.OutputPath,
		})
	case jobs.EventTypeDoneAll:
		p.finished = true
	case jobs.EventTypeError:
		p.finished = true
		p.failure = event.Message
		if p.failure == "" {
			p.failure = "transcription failed"
		}
	}
}

// overall maps per-file progress onto the whole batch.
func (p *Presenter) overall() (target, floor float64) {
	total := p.filesTotal
	if total <= 0 {
		total = 1
	}
	target = (float64(p.filesDone) + p.fileTarget/100) / float64(total) * 100
	floor = (float64(p.filesDone) + p.fileFloor/100) / float64(total) * 100
	return target, floor
}

func (p *Presenter) finish(snapshot Snapshot) {
	if p.opts.Runs != nil {
		if err := p.opts.Runs.Finish(p.runID, p.failure); err != nil {
			logging.Log.Warn().Err(err).Str("run", p.runID).Msg("record run result")
		}
	}
	if p.opts.OnFinish != nil {
		p.opts.OnFinish(snapshot)
	}
}
