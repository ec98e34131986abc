package bootstrap

import (
	"fmt"
	"path/filepath"
	"strings"

	"whisper-transcriber/internal/config"
	"whisper-transcriber/internal/domain"
	"whisper-transcriber/internal/engine"
)

// GetWhisperModels returns built-in whisper.cpp model presets with local state.
func (a *App) GetWhisperModels() []domain.WhisperModelOption {
	settings, err := a.Store.Load()
	if err != nil {
		settings = config.DefaultSettings()
	}
	return engine.Models(modelDirOrDefault(settings.ModelDir), a.Env.WhisperModel)
}

// DownloadWhisperModel downloads one catalog model into the model directory.
func (a *App) DownloadWhisperModel(modelID string) (domain.Settings, error) {
	id := strings.TrimSpace(modelID)
	if id == "" {
		return domain.Settings{}, fmt.Errorf("model id is required")
	}
	if a.Store == nil {
		return domain.Settings{}, fmt.Errorf("settings store is not configured")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	settings, changed, err := downloadCatalogModel(settings, id, a.download)
	if err != nil {
		return domain.Settings{}, err
	}
	if changed {
		if err := a.Store.Save(settings); err != nil {
			return domain.Settings{}, fmt.Errorf("save settings: %w", err)
		}
	}

	a.refreshDiagnosticsFromSettings(settings)
	return settings, nil
}

// downloadCatalogModel fetches variant into settings.ModelDir, filling the
// directory in when it was unset.
func downloadCatalogModel(settings domain.Settings, variant string, download downloadFunc) (domain.Settings, bool, error) {
	model, found := engine.LookupModel(variant)
	if !found {
		return settings, false, fmt.Errorf("unknown model id: %s", variant)
	}

	changed := false
	if settings.ModelDir == "" {
		settings.ModelDir = modelDirOrDefault("")
		changed = true
	}

	target := filepath.Join(settings.ModelDir, model.FileName)
	if err := download(target, model.URL); err != nil {
		return settings, false, fmt.Errorf("download model %s: %w", model.Name, err)
	}
	return settings, changed, nil
}

func modelDirOrDefault(dir string) string {
	if dir = strings.TrimSpace(dir); dir != "" {
		return dir
	}
	return filepath.Join(config.AppDir(), "models")
}
