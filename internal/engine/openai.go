package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"whisper-transcriber/internal/media"
)

// transcriptionClient is the subset of the OpenAI client the engine uses.
type transcriptionClient interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// OpenAILoader builds engines backed by an OpenAI-compatible transcription endpoint.
type OpenAILoader struct {
	cfg       Config
	newClient func(cfg Config) transcriptionClient
}

// NewOpenAILoader constructs a loader for the hosted or self-hosted API.
func NewOpenAILoader(cfg Config) *OpenAILoader {
	return &OpenAILoader{cfg: cfg, newClient: newOpenAIClient}
}

func newOpenAIClient(cfg Config) transcriptionClient {
	clientCfg := openai.DefaultConfig(strings.TrimSpace(cfg.OpenAIKey))
	if base := strings.TrimSpace(cfg.OpenAIBaseURL); base != "" {
		clientCfg.BaseURL = base
	}
	return openai.NewClientWithConfig(clientCfg)
}

// Load validates credentials and returns a ready engine.
func (l *OpenAILoader) Load(_ context.Context, opts LoadOptions) (Engine, error) {
	if strings.TrimSpace(l.cfg.OpenAIKey) == "" && strings.TrimSpace(l.cfg.OpenAIBaseURL) == "" {
		return nil, errors.New("openai engine requires OPENAI_API_KEY or OPENAI_BASE_URL")
	}
	model := strings.TrimSpace(l.cfg.OpenAIModel)
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAI{
		client:   l.newClient(l.cfg),
		model:    model,
		language: normalizeLanguage(opts.Language),
	}, nil
}

// OpenAI posts each window as an in-memory WAV upload.
type OpenAI struct {
	client   transcriptionClient
	model    string
	language string
}

// Transcribe encodes samples to WAV in memory and sends them for recognition.
func (o *OpenAI) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	buf := &media.MemBuffer{}
	if err := media.EncodeSamples(buf, samples); err != nil {
		return "", fmt.Errorf("encode engine input: %w", err)
	}

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: "chunk.wav",
		Reader:   bytes.NewReader(buf.Bytes()),
		Language: o.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription failed: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Close releases nothing; the HTTP client is shared.
func (o *OpenAI) Close() error {
	return nil
}
