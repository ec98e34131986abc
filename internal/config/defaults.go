package config

import (
	"os"
	"path/filepath"

	"whisper-transcriber/internal/domain"
)

// AppDirName is the per-user directory holding settings and models.
const AppDirName = ".media-transcriber"

// AppDir returns ~/.media-transcriber, falling back to the working directory.
func AppDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, AppDirName)
}

// SettingsPath is the JSON settings file location.
func SettingsPath() string {
	return filepath.Join(AppDir(), "settings.json")
}

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		ModelDir:  filepath.Join(AppDir(), "models"),
		OutputDir: filepath.Join(homeDir, "Documents", "Transcripts"),
		Language:  "auto",
	}
}
