package diagnostics

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/shirou/gopsutil/v3/disk"

	"whisper-transcriber/internal/domain"
	"whisper-transcriber/internal/engine"
)

// Options names the tools and limits the checks are run against.
type Options struct {
	FFmpegBin   string
	FFprobeBin  string
	Engine      engine.Kind
	WhisperBin  string
	Variant     string
	OpenAIKey   string
	OpenAIBase  string
	ScratchDir  string
	MinFreeDisk int64
}

// Checker validates external tools and required filesystem paths.
type Checker struct {
	opts       Options
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
	diskUsage  func(string) (*disk.UsageStat, error)
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker(opts Options) *Checker {
	return &Checker{
		opts:       withDefaults(opts),
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		diskUsage:  disk.Usage,
	}
}

func withDefaults(opts Options) Options {
	if strings.TrimSpace(opts.FFmpegBin) == "" {
		opts.FFmpegBin = "ffmpeg"
	}
	if strings.TrimSpace(opts.FFprobeBin) == "" {
		opts.FFprobeBin = "ffprobe"
	}
	if strings.TrimSpace(opts.WhisperBin) == "" {
		opts.WhisperBin = engine.DefaultWhisperBin
	}
	if opts.Engine == "" {
		opts.Engine = engine.KindWhisperCPP
	}
	if strings.TrimSpace(opts.ScratchDir) == "" {
		opts.ScratchDir = os.TempDir()
	}
	opts.Variant = engine.NormalizeVariant(opts.Variant)
	return opts
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTool("ffmpeg", c.opts.FFmpegBin),
		c.checkTool("ffprobe", c.opts.FFprobeBin),
	}
	if c.opts.Engine == engine.KindOpenAI {
		items = append(items, c.checkOpenAI())
	} else {
		items = append(items,
			c.checkTool("whisper.cpp", c.opts.WhisperBin),
			c.checkModel(settings.ModelDir),
		)
	}
	items = append(items,
		c.checkOutputDir(settings.OutputDir),
		c.checkScratchSpace(),
	)

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkTool verifies a required CLI executable is on PATH.
func (c *Checker) checkTool(id, bin string) domain.DiagnosticItem {
	path, err := c.lookPath(bin)
	if err != nil {
		return domain.DiagnosticItem{
			ID:      "tool_" + id,
			Name:    id,
			Status:  domain.DiagnosticStatusFail,
			Message: fmt.Sprintf("Tool not found in PATH: %s", bin),
			Hint:    "Install it and ensure the binary is available on PATH before starting a transcription job.",
		}
	}

	return domain.DiagnosticItem{
		ID:      "tool_" + id,
		Name:    id,
		Status:  domain.DiagnosticStatusPass,
		Message: fmt.Sprintf("Found at %s", path),
	}
}

// checkModel validates that the selected variant exists in the model directory.
func (c *Checker) checkModel(modelDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "model",
		Name: "Whisper model",
	}

	candidate := c.opts.Variant
	if !filepath.IsAbs(candidate) {
		if strings.TrimSpace(modelDir) == "" {
			item.Status = domain.DiagnosticStatusFail
			item.Message = "Model directory is empty."
			item.Hint = "Set a model directory in settings."
			return item
		}
		candidate = filepath.Join(modelDir, engine.ModelFileName(c.opts.Variant))
	}

	info, err := c.stat(candidate)
	if err != nil || info.IsDir() {
		item.Status = domain.DiagnosticStatusFail
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			item.Message = fmt.Sprintf("Cannot access model file: %s", candidate)
		} else {
			item.Message = fmt.Sprintf("Model %q is not downloaded: %s", c.opts.Variant, candidate)
		}
		item.Hint = "Download the model from the model list or set WHISPER_MODEL to a downloaded variant."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Model file found: %s", candidate)
	return item
}

// checkOpenAI validates that the HTTP engine has somewhere to send audio.
func (c *Checker) checkOpenAI() domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "engine_openai",
		Name: "OpenAI-compatible engine",
	}
	if strings.TrimSpace(c.opts.OpenAIKey) == "" && strings.TrimSpace(c.opts.OpenAIBase) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Neither OPENAI_API_KEY nor OPENAI_BASE_URL is set."
		item.Hint = "Export an API key, or point OPENAI_BASE_URL at a compatible local server."
		return item
	}
	item.Status = domain.DiagnosticStatusPass
	item.Message = "Credentials configured."
	return item
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "output_dir",
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output directory is empty."
		item.Hint = "Set an output directory where transcript files can be written."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for transcript export."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

// checkScratchSpace warns when the chunk scratch volume is nearly full.
func (c *Checker) checkScratchSpace() domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "scratch_disk",
		Name: "Scratch space",
	}

	usage, err := c.diskUsage(c.opts.ScratchDir)
	if err != nil {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("Cannot read free space for %s", c.opts.ScratchDir)
		return item
	}

	free := datasize.ByteSize(usage.Free)
	if c.opts.MinFreeDisk > 0 && usage.Free < uint64(c.opts.MinFreeDisk) {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("Only %s free in %s", free.HumanReadable(), c.opts.ScratchDir)
		item.Hint = fmt.Sprintf("Chunk extraction needs at least %s of temporary space.", datasize.ByteSize(c.opts.MinFreeDisk).HumanReadable())
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("%s free in %s", free.HumanReadable(), c.opts.ScratchDir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	opts Options,
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
	diskUsage func(string) (*disk.UsageStat, error),
) *Checker {
	return &Checker{
		opts:       withDefaults(opts),
		lookPath:   lookPath,
		stat:       stat,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
		diskUsage:  diskUsage,
	}
}
