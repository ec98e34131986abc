package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/shlex"

	"whisper-transcriber/internal/logging"
	"whisper-transcriber/internal/media"
)

// DefaultWhisperBin is the whisper.cpp executable looked up on PATH.
const DefaultWhisperBin = "whisper.cpp"

const blankAudioMarker = "[BLANK_AUDIO]"

// WhisperCPPLoader resolves the whisper.cpp binary and model file once per run.
type WhisperCPPLoader struct {
	bin       string
	modelDir  string
	extraArgs []string
	runner    media.CommandRunner
	lookPath  func(string) (string, error)
	stat      func(string) (os.FileInfo, error)
}

// NewWhisperCPPLoader validates configuration for the whisper.cpp engine.
func NewWhisperCPPLoader(cfg Config, runner media.CommandRunner) (*WhisperCPPLoader, error) {
	extra, err := shlex.Split(cfg.ExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("parse whisper extra args: %w", err)
	}
	bin := strings.TrimSpace(cfg.WhisperBin)
	if bin == "" {
		bin = DefaultWhisperBin
	}
	if runner == nil {
		runner = &media.ExecRunner{}
	}
	return &WhisperCPPLoader{
		bin:       bin,
		modelDir:  strings.TrimSpace(cfg.ModelDir),
		extraArgs: extra,
		runner:    runner,
		lookPath:  exec.LookPath,
		stat:      os.Stat,
	}, nil
}

// Load resolves the binary and model file for opts.Variant.
func (l *WhisperCPPLoader) Load(_ context.Context, opts LoadOptions) (Engine, error) {
	binPath, err := l.lookPath(l.bin)
	if err != nil {
		return nil, fmt.Errorf("whisper.cpp binary not found: %s: %w", l.bin, err)
	}

	modelPath, err := l.ResolveModelPath(opts.Variant)
	if err != nil {
		return nil, err
	}

	workDir := strings.TrimSpace(opts.WorkDir)
	if workDir == "" {
		workDir = os.TempDir()
	}

	return &WhisperCPP{
		bin:        binPath,
		modelPath:  modelPath,
		language:   normalizeLanguage(opts.Language),
		extraArgs:  l.extraArgs,
		workDir:    workDir,
		runner:     l.runner,
		writeWAV:   media.WriteSamplesFile,
		readFile:   os.ReadFile,
		removeFile: os.Remove,
	}, nil
}

// ResolveModelPath maps a variant (or an explicit model file path) to a model file.
func (l *WhisperCPPLoader) ResolveModelPath(variant string) (string, error) {
	variant = NormalizeVariant(variant)
	candidate := variant
	if !filepath.IsAbs(variant) {
		if l.modelDir == "" {
			return "", fmt.Errorf("%w: model directory is not configured", ErrModelNotFound)
		}
		candidate = filepath.Join(l.modelDir, ModelFileName(variant))
	}

	info, err := l.stat(candidate)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrModelNotFound, candidate)
		}
		return "", fmt.Errorf("cannot access model file %s: %w", candidate, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrModelNotFound, candidate)
	}
	return candidate, nil
}

// WhisperCPP runs the whisper.cpp CLI on one window at a time.
type WhisperCPP struct {
	bin        string
	modelPath  string
	language   string
	extraArgs  []string
	workDir    string
	runner     media.CommandRunner
	writeWAV   func(path string, samples []float32) error
	readFile   func(name string) ([]byte, error)
	removeFile func(name string) error
	seq        int
}

// ModelPath returns the resolved model file.
func (w *WhisperCPP) ModelPath() string {
	return w.modelPath
}

// Transcribe encodes samples to a WAV, runs whisper.cpp, and reads its text output.
func (w *WhisperCPP) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	w.seq++
	base := filepath.Join(w.workDir, fmt.Sprintf("engine-%04d", w.seq))
	wavPath := base + ".wav"
	textPath := base + ".txt"
	defer w.discard(wavPath)
	defer w.discard(textPath)

	if err := w.writeWAV(wavPath, samples); err != nil {
		return "", fmt.Errorf("write engine input: %w", err)
	}

	args := buildWhisperArgs(w.modelPath, wavPath, base, w.language, w.extraArgs)
	res, err := w.runner.Run(ctx, w.bin, args...)
	if err != nil {
		return "", &media.CommandError{
			Log: media.NewCommandLog(w.bin, args, res),
			Err: fmt.Errorf("whisper.cpp transcription failed: %w", err),
		}
	}

	content, err := w.readFile(textPath)
	if err != nil {
		return "", fmt.Errorf("whisper.cpp completed but transcript is missing: %w", err)
	}
	return cleanTranscript(string(content)), nil
}

// Close is a no-op; per-window files are removed by Transcribe.
func (w *WhisperCPP) Close() error {
	return nil
}

func (w *WhisperCPP) discard(path string) {
	if err := w.removeFile(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Log.Warn().Err(err).Str("path", path).Msg("remove engine scratch file")
	}
}

// buildWhisperArgs builds whisper.cpp args for plain txt output without timestamps.
func buildWhisperArgs(modelPath, audioPath, textBase, language string, extra []string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-nt",
		"-np",
		"-otxt",
		"-of", textBase,
	}
	if language != "" {
		args = append(args, "-l", language)
	}
	return append(args, extra...)
}

// cleanTranscript joins whisper.cpp segment lines and drops silence markers.
func cleanTranscript(raw string) string {
	parts := make([]string, 0, 8)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == blankAudioMarker {
			continue
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, " ")
}

// NewWhisperCPPForTests constructs an engine with injectable file operations.
func NewWhisperCPPForTests(
	bin, modelPath, language, workDir string,
	runner media.CommandRunner,
	writeWAV func(string, []float32) error,
	readFile func(string) ([]byte, error),
	removeFile func(string) error,
) *WhisperCPP {
	return &WhisperCPP{
		bin:        bin,
		modelPath:  modelPath,
		language:   normalizeLanguage(language),
		workDir:    workDir,
		runner:     runner,
		writeWAV:   writeWAV,
		readFile:   readFile,
		removeFile: removeFile,
	}
}
