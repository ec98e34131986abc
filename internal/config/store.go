package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"whisper-transcriber/internal/domain"
)

// Store defines persistence operations for app settings.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
}

// JSONStore keeps settings in one JSON file under the app directory.
type JSONStore struct {
	path string
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load reads settings from disk. A missing file yields defaults, and blank
// fields in an existing file are filled from defaults.
func (s *JSONStore) Load() (domain.Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return domain.Settings{}, fmt.Errorf("read settings %s: %w", s.path, err)
	}

	var cfg domain.Settings
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings %s: %w", s.path, err)
	}
	return withDefaultSettings(cfg), nil
}

// Save replaces the settings file through a temporary sibling so a crash
// never leaves a truncated file behind.
func (s *JSONStore) Save(cfg domain.Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("prepare settings directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

func withDefaultSettings(cfg domain.Settings) domain.Settings {
	def := DefaultSettings()
	if strings.TrimSpace(cfg.ModelDir) == "" {
		cfg.ModelDir = def.ModelDir
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		cfg.OutputDir = def.OutputDir
	}
	if strings.TrimSpace(cfg.Language) == "" {
		cfg.Language = def.Language
	}
	return cfg
}
