// Command transcribe runs the chunked transcription pipeline from a terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/lithammer/shortuuid/v4"
	"github.com/mattn/go-isatty"

	"whisper-transcriber/internal/config"
	"whisper-transcriber/internal/diagnostics"
	"whisper-transcriber/internal/domain"
	"whisper-transcriber/internal/jobs"
	"whisper-transcriber/internal/logging"
	"whisper-transcriber/internal/progress"
	"whisper-transcriber/internal/transcribe"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	outputDir string
	modelDir  string
	language  string
	noColor   bool
	inputs    []string
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("transcribe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.outputDir, "o", "", "output directory (default: folder of the first input)")
	fs.StringVar(&opts.modelDir, "models", "", "whisper.cpp model directory (default: saved settings)")
	fs.StringVar(&opts.language, "lang", "", "spoken language code or auto (default: saved settings)")
	fs.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: transcribe [flags] <media> [media...]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	opts.inputs = fs.Args()
	if len(opts.inputs) == 0 {
		fs.Usage()
		return options{}, errors.New("no input files")
	}
	return opts, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(stderr, "load configuration: %v\n", err)
		return 1
	}
	logging.Init(env.LogLevel, true)

	settings, err := config.NewJSONStore(config.SettingsPath()).Load()
	if err != nil {
		logging.Log.Warn().Err(err).Msg("settings unreadable, using defaults")
		settings = config.DefaultSettings()
	}
	settings = resolveSettings(settings, opts)

	queue := jobs.NewFileQueue()
	added, err := queue.Add(opts.inputs...)
	if err != nil {
		fmt.Fprintf(stderr, "queue inputs: %v\n", err)
		return 1
	}
	if len(added) == 0 {
		fmt.Fprintf(stderr, "no supported media files among %d argument(s)\n", len(opts.inputs))
		return 1
	}
	if settings.OutputDir == "" {
		settings.OutputDir = filepath.Dir(added[0].Path)
	}
	if err := os.MkdirAll(settings.OutputDir, 0o755); err != nil {
		fmt.Fprintf(stderr, "create output directory: %v\n", err)
		return 1
	}

	report := newChecker(env).Run(settings)
	for _, item := range report.Items {
		if item.Status != domain.DiagnosticStatusPass {
			logging.Log.Warn().Str("check", item.ID).Msg(item.Message)
		}
	}

	pipeline, err := env.NewPipeline(settings.ModelDir)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	files, err := queue.Freeze()
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	colored := !opts.noColor && isTerminal(stdout)
	if err := transcribeAll(pipeline, env, settings, files, newTerminalView(stdout, colored)); err != nil {
		return 1
	}
	return 0
}

// transcribeAll runs the worker on this goroutine and the presenter on its own.
func transcribeAll(pipeline *transcribe.Pipeline, env config.Env, settings domain.Settings, files []domain.MediaFile, view progress.View) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := shortuuid.New()
	events := jobs.NewQueue(runID)
	presenter := progress.NewPresenter(runID, len(files), events, view, progress.Options{
		PollInterval: env.PollInterval,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := presenter.Run(context.Background()); err != nil {
			logging.Log.Error().Err(err).Msg("progress presenter stopped")
		}
	}()

	err := pipeline.Run(ctx, transcribe.Request{
		RunID:     runID,
		Files:     files,
		OutputDir: settings.OutputDir,
		Variant:   env.WhisperModel,
		Language:  settings.Language,
		Events:    events,
	})
	<-done
	return err
}

// resolveSettings applies flag overrides. An unset output directory falls
// back to the first input's folder later.
func resolveSettings(settings domain.Settings, opts options) domain.Settings {
	settings.OutputDir = strings.TrimSpace(opts.outputDir)
	if dir := strings.TrimSpace(opts.modelDir); dir != "" {
		settings.ModelDir = dir
	}
	if lang := strings.TrimSpace(opts.language); lang != "" {
		settings.Language = lang
	}
	return settings
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func newChecker(env config.Env) *diagnostics.Checker {
	return diagnostics.NewChecker(env.DiagnosticsOptions())
}
