package bootstrap

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"whisper-transcriber/internal/domain"
)

// TestInstallOrFixOutputDirCreatesDirectory ensures output dir fix creates missing directories.
func TestInstallOrFixOutputDirCreatesDirectory(t *testing.T) {
	root := t.TempDir()
	outputDir := filepath.Join(root, "nested", "transcripts")

	settings := domain.Settings{
		OutputDir: outputDir,
		Language:  "auto",
	}
	fixed, changed, err := installOrFixOutputDir(settings)
	if err != nil {
		t.Fatalf("fix output dir: %v", err)
	}
	if changed {
		t.Fatal("expected settings to remain unchanged")
	}
	if fixed.OutputDir != outputDir {
		t.Fatalf("OutputDir = %s, want %s", fixed.OutputDir, outputDir)
	}
	if _, err := os.Stat(outputDir); err != nil {
		t.Fatalf("stat output dir: %v", err)
	}
}

// TestInstallOrFixOutputDirFillsDefault sets a default when empty.
func TestInstallOrFixOutputDirFillsDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	fixed, changed, err := installOrFixOutputDir(domain.Settings{})
	if err != nil {
		t.Fatalf("fix output dir: %v", err)
	}
	if !changed || fixed.OutputDir == "" {
		t.Fatalf("expected default output dir, got %+v", fixed)
	}
}

// TestDownloadURLToFile writes the body atomically.
func TestDownloadURLToFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("model-bytes"))
	}))
	defer server.Close()

	target := filepath.Join(t.TempDir(), "models", "ggml-base.bin")
	if err := downloadURLToFile(target, server.URL+"/ggml-base.bin", time.Minute); err != nil {
		t.Fatalf("download: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "model-bytes" {
		t.Fatalf("content = %q", data)
	}

	if err := downloadURLToFile(target+".2", server.URL+"/missing", time.Minute); err == nil {
		t.Fatal("expected HTTP status error")
	}
	if _, err := os.Stat(target + ".2.download"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temporary file left behind: %v", err)
	}
}

// TestInstallOrFixDiagnosticToolsAreManual reports a hint for tools.
func TestInstallOrFixDiagnosticToolsAreManual(t *testing.T) {
	app, _ := newTestApp(t, nil)

	if _, err := app.InstallOrFixDiagnostic("tool_ffmpeg"); err == nil {
		t.Fatal("expected manual install error")
	}
	if _, err := app.InstallOrFixDiagnostic("bogus"); err == nil {
		t.Fatal("expected unsupported id error")
	}
}
