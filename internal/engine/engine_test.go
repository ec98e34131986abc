package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisper-transcriber/internal/media"
)

type fakeRunner struct {
	run func(name string, args ...string) (media.CommandResult, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (media.CommandResult, error) {
	return f.run(name, args...)
}

func argValue(args []string, key string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == key {
			return args[i+1]
		}
	}
	return ""
}

func TestModelFileName(t *testing.T) {
	assert.Equal(t, "ggml-base.bin", ModelFileName(""))
	assert.Equal(t, "ggml-base.en.bin", ModelFileName("base.en"))
	assert.Equal(t, "ggml-custom.bin", ModelFileName("custom"))
	assert.Equal(t, "my-model.gguf", ModelFileName("my-model.gguf"))
}

func TestLookupModel(t *testing.T) {
	m, ok := LookupModel("small.en")
	require.True(t, ok)
	assert.Equal(t, "ggml-small.en.bin", m.FileName)
	assert.Contains(t, m.URL, "ggml-small.en.bin")

	m, ok = LookupModel("distil-x")
	assert.False(t, ok)
	assert.Equal(t, "ggml-distil-x.bin", m.FileName)
}

func TestModelsMarksDownloadedAndSelected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ggml-tiny.bin"), []byte("m"), 0o644))

	models := Models(dir, "tiny")
	var found bool
	for _, m := range models {
		if m.ID == "tiny" {
			found = true
			assert.True(t, m.Downloaded)
			assert.True(t, m.Selected)
			assert.Equal(t, filepath.Join(dir, "ggml-tiny.bin"), m.LocalPath)
			continue
		}
		assert.False(t, m.Selected, m.ID)
	}
	assert.True(t, found)
}

func TestWhisperCPPLoaderResolvesVariant(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "ggml-base.bin")
	require.NoError(t, os.WriteFile(model, []byte("m"), 0o644))

	loader, err := NewWhisperCPPLoader(Config{ModelDir: dir, ExtraArgs: `-t 4 --prompt "hello there"`}, &fakeRunner{})
	require.NoError(t, err)
	loader.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }

	eng, err := loader.Load(context.Background(), LoadOptions{WorkDir: dir})
	require.NoError(t, err)
	w := eng.(*WhisperCPP)
	assert.Equal(t, model, w.ModelPath())
	assert.Equal(t, "/usr/bin/whisper.cpp", w.bin)
	assert.Equal(t, []string{"-t", "4", "--prompt", "hello there"}, w.extraArgs)
}

func TestWhisperCPPLoaderMissingModel(t *testing.T) {
	loader, err := NewWhisperCPPLoader(Config{ModelDir: t.TempDir()}, &fakeRunner{})
	require.NoError(t, err)
	loader.lookPath = func(name string) (string, error) { return name, nil }

	_, err = loader.Load(context.Background(), LoadOptions{Variant: "medium"})
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestWhisperCPPLoaderMissingBinary(t *testing.T) {
	loader, err := NewWhisperCPPLoader(Config{ModelDir: t.TempDir()}, &fakeRunner{})
	require.NoError(t, err)
	loader.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	_, err = loader.Load(context.Background(), LoadOptions{})
	assert.Error(t, err)
}

func TestNewWhisperCPPLoaderRejectsBadExtraArgs(t *testing.T) {
	_, err := NewWhisperCPPLoader(Config{ExtraArgs: `--prompt "unterminated`}, nil)
	assert.Error(t, err)
}

func TestWhisperCPPTranscribe(t *testing.T) {
	dir := t.TempDir()
	var seenArgs []string
	runner := &fakeRunner{run: func(_ string, args ...string) (media.CommandResult, error) {
		seenArgs = args
		_, err := os.Stat(argValue(args, "-f"))
		require.NoError(t, err)
		base := argValue(args, "-of")
		return media.CommandResult{}, os.WriteFile(base+".txt", []byte(" Hello there.\n[BLANK_AUDIO]\n General Kenobi.\n"), 0o644)
	}}

	w := NewWhisperCPPForTests("whisper.cpp", "/m/ggml-base.bin", "en", dir, runner, media.WriteSamplesFile, os.ReadFile, os.Remove)
	text, err := w.Transcribe(context.Background(), []float32{0.1, 0.2})
	require.NoError(t, err)
	assert.Equal(t, "Hello there. General Kenobi.", text)
	assert.Equal(t, "en", argValue(seenArgs, "-l"))
	assert.Contains(t, seenArgs, "-nt")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "engine scratch files should be removed")
}

func TestWhisperCPPTranscribeAutoLanguageAndEmptyInput(t *testing.T) {
	calls := 0
	runner := &fakeRunner{run: func(_ string, args ...string) (media.CommandResult, error) {
		calls++
		assert.Empty(t, argValue(args, "-l"))
		return media.CommandResult{}, os.WriteFile(argValue(args, "-of")+".txt", []byte("[BLANK_AUDIO]\n"), 0o644)
	}}
	w := NewWhisperCPPForTests("whisper.cpp", "/m.bin", "auto", t.TempDir(), runner, media.WriteSamplesFile, os.ReadFile, os.Remove)

	text, err := w.Transcribe(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Zero(t, calls)

	text, err = w.Transcribe(context.Background(), []float32{0})
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, 1, calls)
}

func TestWhisperCPPTranscribeFailureCarriesCommandLog(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{run: func(string, ...string) (media.CommandResult, error) {
		return media.CommandResult{Stderr: "failed to load model", ExitCode: 3}, errors.New("exit status 3")
	}}
	w := NewWhisperCPPForTests("whisper.cpp", "/m.bin", "", dir, runner, media.WriteSamplesFile, os.ReadFile, os.Remove)

	_, err := w.Transcribe(context.Background(), []float32{0.3})
	var cmdErr *media.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.Log.ExitCode)

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

type fakeTranscriptionClient struct {
	req  openai.AudioRequest
	body []byte
	resp openai.AudioResponse
	err  error
}

func (f *fakeTranscriptionClient) CreateTranscription(_ context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	f.req = req
	if req.Reader != nil {
		f.body, _ = io.ReadAll(req.Reader)
	}
	return f.resp, f.err
}

func TestOpenAITranscribeSendsWAV(t *testing.T) {
	client := &fakeTranscriptionClient{resp: openai.AudioResponse{Text: "  hi  "}}
	loader := NewOpenAILoader(Config{OpenAIKey: "sk-test"})
	loader.newClient = func(Config) transcriptionClient { return client }

	eng, err := loader.Load(context.Background(), LoadOptions{Language: "de"})
	require.NoError(t, err)

	text, err := eng.Transcribe(context.Background(), []float32{0.25, -0.25, 0})
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
	assert.Equal(t, openai.Whisper1, client.req.Model)
	assert.Equal(t, "de", client.req.Language)
	assert.Equal(t, "chunk.wav", client.req.FilePath)

	samples, err := media.DecodeSamples(bytes.NewReader(client.body))
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.InDelta(t, 0.25, samples[0], 1e-3)
}

func TestOpenAILoaderRequiresCredentials(t *testing.T) {
	_, err := NewOpenAILoader(Config{}).Load(context.Background(), LoadOptions{})
	assert.Error(t, err)
}

func TestNewLoaderSelectsKind(t *testing.T) {
	l, err := NewLoader(Config{Kind: "OpenAI", OpenAIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAILoader{}, l)

	l, err = NewLoader(Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &WhisperCPPLoader{}, l)

	_, err = NewLoader(Config{Kind: "vosk"}, nil)
	assert.Error(t, err)
}
