// Package transcribe runs the chunked transcription of a batch of media files.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"whisper-transcriber/internal/chunk"
	"whisper-transcriber/internal/domain"
	"whisper-transcriber/internal/engine"
	"whisper-transcriber/internal/jobs"
	"whisper-transcriber/internal/logging"
	"whisper-transcriber/internal/media"
)

// Publisher receives progress events from the worker. jobs.Queue implements it.
type Publisher interface {
	Push(event jobs.Event) (jobs.Event, error)
}

// Request describes one run over an immutable file snapshot.
type Request struct {
	RunID     string
	Files     []domain.MediaFile
	OutputDir string
	Variant   string
	Language  string
	Events    Publisher
}

// Config wires the external tools and engine used by a pipeline.
type Config struct {
	FFmpegBin  string
	FFprobeBin string
	MaxWindow  float64
	Loader     engine.Loader
	Runner     media.CommandRunner
}

type durationProber interface {
	Probe(ctx context.Context, path string) media.ProbeResult
}

type windowExtractor interface {
	Extract(ctx context.Context, src string, w chunk.Window, outPath string) ([]float32, error)
}

// Pipeline orchestrates probing, window extraction, transcription, and export.
type Pipeline struct {
	ffmpegPath  string
	ffprobePath string
	maxWindow   float64
	loader      engine.Loader
	prober      durationProber
	extractor   windowExtractor
	lookPath    func(file string) (string, error)
	mkdirTemp   func(dir, pattern string) (string, error)
	removeAll   func(path string) error
	remove      func(name string) error
	mkdirAll    func(path string, perm os.FileMode) error
	stat        func(name string) (os.FileInfo, error)
	writeFile   func(name string, data []byte, perm os.FileMode) error
	now         func() time.Time
}

// NewPipeline constructs the production pipeline with OS dependencies.
func NewPipeline(cfg Config) *Pipeline {
	ffmpeg := strings.TrimSpace(cfg.FFmpegBin)
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	ffprobe := strings.TrimSpace(cfg.FFprobeBin)
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	maxWindow := cfg.MaxWindow
	if maxWindow <= 0 {
		maxWindow = chunk.DefaultMaxWindow
	}
	runner := cfg.Runner
	if runner == nil {
		runner = &media.ExecRunner{}
	}

	return &Pipeline{
		ffmpegPath:  ffmpeg,
		ffprobePath: ffprobe,
		maxWindow:   maxWindow,
		loader:      cfg.Loader,
		prober:      media.NewProber(ffprobe, runner),
		extractor:   media.NewExtractor(ffmpeg, runner),
		lookPath:    exec.LookPath,
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
		remove:      os.Remove,
		mkdirAll:    os.MkdirAll,
		stat:        os.Stat,
		writeFile:   os.WriteFile,
		now:         time.Now,
	}
}

// Run transcribes req.Files in order. It emits exactly one terminal event:
// done-all on success, or a single error event carrying the failure message.
// Transcripts written before a failure are kept.
func (p *Pipeline) Run(ctx context.Context, req Request) error {
	log := logging.Log.With().Str("run", req.RunID).Logger()

	if err := p.run(ctx, req, log); err != nil {
		log.Error().Err(err).Msg("transcription run failed")
		p.publish(req.Events, jobs.Failed(err.Error()), log)
		return err
	}

	log.Info().Int("files", len(req.Files)).Msg("transcription run finished")
	p.publish(req.Events, jobs.DoneAll(), log)
	return nil
}

func (p *Pipeline) run(ctx context.Context, req Request, log zerolog.Logger) error {
	for _, tool := range []string{p.ffmpegPath, p.ffprobePath} {
		if _, err := p.lookPath(tool); err != nil {
			return &PipelineError{
				Stage:   StageEnvironment,
				Message: fmt.Sprintf("required tool not found: %s", tool),
				Err:     err,
			}
		}
	}
	if p.loader == nil {
		return &PipelineError{Stage: StageEngine, Message: "engine unavailable: no loader configured"}
	}

	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		return &PipelineError{Stage: StageExporting, Message: "output directory is required"}
	}
	if err := p.mkdirAll(outputDir, 0o755); err != nil {
		return &PipelineError{
			Stage:   StageExporting,
			Message: fmt.Sprintf("cannot create output directory: %s", outputDir),
			Err:     err,
		}
	}

	scratch, err := p.mkdirTemp("", "whisper-transcriber-*")
	if err != nil {
		return &PipelineError{
			Stage:   StageEnvironment,
			Message: "failed to create temporary workspace",
			Err:     err,
		}
	}
	defer func() {
		if err := p.removeAll(scratch); err != nil {
			log.Error().Err(err).Str("dir", scratch).Msg("remove scratch directory")
		}
	}()

	eng, err := p.loader.Load(ctx, engine.LoadOptions{
		Variant:  req.Variant,
		Language: req.Language,
		WorkDir:  scratch,
	})
	if err != nil {
		return &PipelineError{
			Stage:   StageEngine,
			Message: fmt.Sprintf("engine unavailable: %v", err),
			Err:     err,
		}
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.Warn().Err(err).Msg("close engine")
		}
	}()

	for i, file := range req.Files {
		if err := p.transcribeFile(ctx, req, i, file, eng, scratch, outputDir, log); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) transcribeFile(
	ctx context.Context,
	req Request,
	index int,
	file domain.MediaFile,
	eng engine.Engine,
	scratch string,
	outputDir string,
	log zerolog.Logger,
) error {
	flog := log.With().Int("file", index).Str("name", file.Name).Logger()

	next, err := p.windows(ctx, file, flog)
	if err != nil {
		return err
	}

	var texts []string
	for w, ok := next(); ok; w, ok = next() {
		p.publish(req.Events, jobs.ChunkTarget(index, w.TargetPercent), flog)

		text, err := p.transcribeWindow(ctx, file, w, eng, scratch, flog)
		if err != nil {
			return err
		}
		texts = append(texts, text)

		p.publish(req.Events, jobs.ChunkDone(index), flog)
	}

	outPath := filepath.Join(outputDir, TranscriptFileName(file.Path, p.now()))
	if _, err := p.stat(outPath); err == nil {
		flog.Warn().Str("path", outPath).Msg("overwriting existing transcript")
	}
	if err := p.writeFile(outPath, []byte(AssembleTranscript(texts)), 0o644); err != nil {
		return &PipelineError{
			Stage:   StageExporting,
			Message: fmt.Sprintf("failed to write transcript: %s", outPath),
			File:    file.Name,
			Err:     err,
		}
	}

	flog.Info().Str("output", outPath).Int("chunks", len(texts)).Msg("file transcribed")
	p.publish(req.Events, jobs.FileDone(index, file.Name, outPath, filepath.Base(outPath)), flog)
	return nil
}

// windows returns the window iterator for file. An unknown duration yields a
// single window covering the whole input.
func (p *Pipeline) windows(ctx context.Context, file domain.MediaFile, log zerolog.Logger) (func() (chunk.Window, bool), error) {
	probe := p.prober.Probe(ctx, file.Path)
	if !probe.Known() {
		log.Warn().Err(probe.Err).Msg("duration unknown, transcribing in one pass")
		used := false
		return func() (chunk.Window, bool) {
			if used {
				return chunk.Window{}, false
			}
			used = true
			return chunk.Window{Index: 0, Start: 0, Length: 0, TargetPercent: 100}, true
		}, nil
	}

	planner, err := chunk.NewPlanner(probe.Seconds, p.maxWindow)
	if err != nil {
		return nil, &PipelineError{
			Stage:   StageProbing,
			Message: "cannot plan windows",
			File:    file.Name,
			Err:     err,
		}
	}
	log.Debug().
		Float64("duration", probe.Seconds).
		Str("source", string(probe.Source)).
		Int("chunks", chunk.Count(probe.Seconds, p.maxWindow)).
		Msg("duration probed")
	return planner.Next, nil
}

// transcribeWindow extracts one window to the scratch directory, transcribes
// it, and removes the WAV before returning.
func (p *Pipeline) transcribeWindow(
	ctx context.Context,
	file domain.MediaFile,
	w chunk.Window,
	eng engine.Engine,
	scratch string,
	log zerolog.Logger,
) (string, error) {
	wavPath := filepath.Join(scratch, fmt.Sprintf("chunk-%04d.wav", w.Index))
	defer p.discard(wavPath, log)

	log.Debug().Int("chunk", w.Index).Float64("start", w.Start).Float64("length", w.Length).Msg("extracting window")
	samples, err := p.extractor.Extract(ctx, file.Path, w, wavPath)
	if err != nil {
		return "", stageError(StageExtracting, fmt.Sprintf("window %d extraction failed", w.Index), file.Name, err)
	}

	text, err := eng.Transcribe(ctx, samples)
	if err != nil {
		return "", stageError(StageTranscribing, fmt.Sprintf("window %d transcription failed", w.Index), file.Name, err)
	}
	return text, nil
}

func (p *Pipeline) discard(path string, log zerolog.Logger) {
	if err := p.remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", path).Msg("remove chunk audio")
	}
}

func (p *Pipeline) publish(pub Publisher, event jobs.Event, log zerolog.Logger) {
	if pub == nil {
		return
	}
	if _, err := pub.Push(event); err != nil {
		log.Warn().Err(err).Str("event", string(event.Type)).Msg("drop progress event")
	}
}

// stageError wraps err, lifting any command log into the pipeline error.
func stageError(stage, message, file string, err error) *PipelineError {
	pe := &PipelineError{Stage: stage, Message: message, File: file, Err: err}
	var cmdErr *media.CommandError
	if errors.As(err, &cmdErr) {
		pe.CommandLog = cmdErr.Log
	}
	return pe
}

// NewPipelineForTests constructs a pipeline with injectable dependencies.
func NewPipelineForTests(
	cfg Config,
	prober durationProber,
	extractor windowExtractor,
	lookPath func(string) (string, error),
	mkdirTemp func(dir, pattern string) (string, error),
	now func() time.Time,
) *Pipeline {
	p := NewPipeline(cfg)
	p.prober = prober
	p.extractor = extractor
	p.lookPath = lookPath
	p.mkdirTemp = mkdirTemp
	p.now = now
	return p
}
