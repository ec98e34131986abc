package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/lithammer/shortuuid/v4"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"whisper-transcriber/internal/config"
	"whisper-transcriber/internal/diagnostics"
	"whisper-transcriber/internal/domain"
	"whisper-transcriber/internal/jobs"
	"whisper-transcriber/internal/logging"
	"whisper-transcriber/internal/progress"
	"whisper-transcriber/internal/transcribe"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// Runtime event names pushed to the frontend.
const (
	EventProgress     = "progress:update"
	EventFilesChanged = "files:changed"
)

var mediaDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Media files",
		Pattern:     "*.mp4;*.mov;*.mkv;*.avi;*.mp3;*.wav;*.m4a;*.flac;*.aac;*.ogg;*.webm",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App wires configuration, the pending file set, runs, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Env         config.Env
	Runs        *jobs.Manager
	Files       *jobs.FileQueue
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker

	mu          sync.Mutex
	events      *jobs.EventBus
	runtimeCtx  context.Context
	pipelineFor func(settings domain.Settings) (pipelineRunner, error)
	mkdirAll    func(path string, perm os.FileMode) error
	emit        func(ctx context.Context, name string, data ...interface{})
	newRunID    func() string
}

// pipelineRunner isolates the transcription pipeline behind an interface.
type pipelineRunner interface {
	Run(ctx context.Context, req transcribe.Request) error
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	logging.Init(env.LogLevel, false)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	if err := ensureLocalBinOnPATH(homeDir); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	store := config.NewJSONStore(config.SettingsPath())
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	checker := diagnostics.NewChecker(env.DiagnosticsOptions())
	report := checker.Run(settings)
	for _, item := range report.Items {
		if item.Status != domain.DiagnosticStatusPass {
			logging.Log.Warn().Str("check", item.ID).Str("status", string(item.Status)).Msg(item.Message)
		}
	}

	app := newApp(env, store, settings)
	app.Diagnostics = report
	app.assets = assets
	app.checker = checker
	return app, nil
}

func newApp(env config.Env, store config.Store, settings domain.Settings) *App {
	return &App{
		Settings: settings,
		Store:    store,
		Env:      env,
		Runs:     jobs.NewManager(),
		Files:    jobs.NewFileQueue(),
		events:   jobs.NewEventBus(1000),
		pipelineFor: func(s domain.Settings) (pipelineRunner, error) {
			return env.NewPipeline(s.ModelDir)
		},
		mkdirAll: os.MkdirAll,
		emit:     wailsruntime.EventsEmit,
		newRunID: shortuuid.New,
	}
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Whisper Transcriber",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		DragAndDrop: &options.DragAndDrop{
			EnableFileDrop: true,
		},
		OnStartup: a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events and file drops.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	a.mu.Unlock()

	wailsruntime.OnFileDrop(ctx, func(_, _ int, paths []string) {
		if _, err := a.AddFiles(paths); err != nil {
			logging.Log.Info().Err(err).Int("paths", len(paths)).Msg("ignore dropped files")
		}
	})
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
// Settings are locked while a run is active.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	if a.Runs.IsRunning() {
		return domain.Settings{}, jobs.ErrRunActive
	}

	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.refreshDiagnosticsFromSettings(normalized)
	return normalized, nil
}

// AddFiles queues media paths. Unsupported and non-regular paths are skipped.
func (a *App) AddFiles(paths []string) ([]domain.MediaFile, error) {
	added, err := a.Files.Add(paths...)
	if err != nil {
		return nil, err
	}
	if len(added) > 0 {
		a.emitEvent(EventFilesChanged, a.Files.Files())
	}
	return added, nil
}

// ClearFiles empties the pending set.
func (a *App) ClearFiles() error {
	if err := a.Files.Clear(); err != nil {
		return err
	}
	a.emitEvent(EventFilesChanged, a.Files.Files())
	return nil
}

// PendingFiles returns the queued media in run order.
func (a *App) PendingFiles() []domain.MediaFile {
	return a.Files.Files()
}

// PickInputFiles opens a native multi-file dialog and queues the selection.
func (a *App) PickInputFiles() ([]domain.MediaFile, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return nil, err
	}

	paths, err := wailsruntime.OpenMultipleFilesDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select media files",
		Filters: mediaDialogFilter,
	})
	if err != nil {
		return nil, err
	}

	return a.AddFiles(paths)
}

// PickModelDirectory opens a native directory picker for model folders.
func (a *App) PickModelDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select model directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickOutputDirectory opens a native directory picker for transcript exports.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select output directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	return a.refreshDiagnosticsFromSettings(settings), nil
}

// StartTranscription freezes the pending files and runs them on a worker
// goroutine while a presenter goroutine pushes progress to the frontend.
// Nothing is spawned when the output directory cannot be created.
func (a *App) StartTranscription() (domain.Run, error) {
	if a.Runs.IsRunning() {
		return domain.Run{}, jobs.ErrRunActive
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.Run{}, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)
	if settings.OutputDir == "" {
		return domain.Run{}, errors.New("output directory is not set")
	}

	files, err := a.Files.Freeze()
	if err != nil {
		return domain.Run{}, err
	}

	pipeline, err := a.prepareRun(settings)
	if err != nil {
		a.Files.Thaw()
		return domain.Run{}, err
	}

	runID := a.newRunID()
	if err := a.Runs.Start(runID, len(files)); err != nil {
		a.Files.Thaw()
		return domain.Run{}, err
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	queue := jobs.NewQueue(runID)
	presenter := progress.NewPresenter(runID, len(files), queue, progress.ViewFunc(a.renderProgress), progress.Options{
		PollInterval: a.Env.PollInterval,
		Bus:          a.events,
		Runs:         a.Runs,
		OnFinish:     a.finishRun,
	})

	go func() {
		if err := presenter.Run(context.Background()); err != nil {
			logging.Log.Error().Err(err).Str("run", runID).Msg("progress presenter stopped")
		}
	}()
	go func() {
		_ = pipeline.Run(context.Background(), transcribe.Request{
			RunID:     runID,
			Files:     files,
			OutputDir: settings.OutputDir,
			Variant:   a.Env.WhisperModel,
			Language:  settings.Language,
			Events:    queue,
		})
	}()

	return a.Runs.Current(), nil
}

// prepareRun creates the output directory and builds the pipeline.
func (a *App) prepareRun(settings domain.Settings) (pipelineRunner, error) {
	if err := a.mkdirAll(settings.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", settings.OutputDir, err)
	}
	pipeline, err := a.pipelineFor(settings)
	if err != nil {
		return nil, err
	}
	return pipeline, nil
}

// finishRun unlocks the pending set; a successful run consumes it.
func (a *App) finishRun(snapshot progress.Snapshot) {
	a.Files.Thaw()
	if snapshot.Error == "" {
		if err := a.Files.Clear(); err != nil {
			logging.Log.Warn().Err(err).Msg("clear processed files")
		}
	}
	a.emitEvent(EventFilesChanged, a.Files.Files())
}

// CurrentRun returns current run metadata and status.
func (a *App) CurrentRun() domain.Run {
	return a.Runs.Current()
}

// JobEvents returns current-run events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(a.Runs.Current().ID, sinceSeq)
}

// renderProgress is the presenter's view: it pushes snapshots to the frontend.
func (a *App) renderProgress(snapshot progress.Snapshot) {
	a.emitEvent(EventProgress, snapshot)
}

// emitEvent sends a runtime push notification when the UI is attached.
func (a *App) emitEvent(name string, data interface{}) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil && a.emit != nil {
		a.emit(ctx, name, data)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and applies default language when empty.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.ModelDir = strings.TrimSpace(settings.ModelDir)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	settings.Language = strings.TrimSpace(settings.Language)
	if settings.Language == "" {
		settings.Language = "auto"
	}
	return settings
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
