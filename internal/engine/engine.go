// Package engine adapts speech-recognition backends to a samples-in, text-out contract.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"whisper-transcriber/internal/media"
)

// Kind selects an engine implementation.
type Kind string

const (
	KindWhisperCPP Kind = "whispercpp"
	KindOpenAI     Kind = "openai"
)

// DefaultVariant is the model variant used when none is configured.
const DefaultVariant = "base"

// ErrModelNotFound is returned when the configured variant has no local model file.
var ErrModelNotFound = errors.New("model file not found")

// Engine turns mono 16 kHz float32 samples into text. Silence yields "" and no error.
type Engine interface {
	Transcribe(ctx context.Context, samples []float32) (string, error)
	Close() error
}

// Loader constructs an engine once per run.
type Loader interface {
	Load(ctx context.Context, opts LoadOptions) (Engine, error)
}

// LoadOptions carries per-run engine inputs.
type LoadOptions struct {
	Variant  string
	Language string
	WorkDir  string
}

// Config describes how to reach each engine kind.
type Config struct {
	Kind          Kind
	ModelDir      string
	WhisperBin    string
	ExtraArgs     string
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
}

// NewLoader returns the loader for cfg.Kind.
func NewLoader(cfg Config, runner media.CommandRunner) (Loader, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(string(cfg.Kind)))) {
	case "", KindWhisperCPP:
		return NewWhisperCPPLoader(cfg, runner)
	case KindOpenAI:
		return NewOpenAILoader(cfg), nil
	default:
		return nil, fmt.Errorf("unknown engine kind %q", cfg.Kind)
	}
}

// NormalizeVariant trims the variant and applies the default.
func NormalizeVariant(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return DefaultVariant
	}
	return v
}

// normalizeLanguage maps "auto" and empty language to no override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}
