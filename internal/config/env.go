package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"whisper-transcriber/internal/diagnostics"
	"whisper-transcriber/internal/engine"
	"whisper-transcriber/internal/transcribe"
)

// Env is process configuration read from the environment and an optional
// transcriber.yaml.
type Env struct {
	WhisperModel     string        `mapstructure:"WHISPER_MODEL"`
	Engine           string        `mapstructure:"TRANSCRIBER_ENGINE"`
	WhisperBin       string        `mapstructure:"WHISPER_BIN"`
	WhisperExtraArgs string        `mapstructure:"WHISPER_EXTRA_ARGS"`
	FFmpegBin        string        `mapstructure:"FFMPEG_BIN"`
	FFprobeBin       string        `mapstructure:"FFPROBE_BIN"`
	ChunkSeconds     float64       `mapstructure:"CHUNK_SECONDS"`
	PollInterval     time.Duration `mapstructure:"POLL_INTERVAL"`
	MinFreeDisk      int64         `mapstructure:"MIN_FREE_DISK"`
	OpenAIKey        string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `mapstructure:"OPENAI_BASE_URL"`
	OpenAIModel      string        `mapstructure:"OPENAI_MODEL"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
}

var envDefaults = map[string]any{
	"WHISPER_MODEL":      "base",
	"TRANSCRIBER_ENGINE": "whispercpp",
	"WHISPER_BIN":        "whisper.cpp",
	"WHISPER_EXTRA_ARGS": "",
	"FFMPEG_BIN":         "ffmpeg",
	"FFPROBE_BIN":        "ffprobe",
	"CHUNK_SECONDS":      90.0,
	"POLL_INTERVAL":      "50ms",
	"MIN_FREE_DISK":      "200MB",
	"OPENAI_API_KEY":     "",
	"OPENAI_BASE_URL":    "",
	"OPENAI_MODEL":       "",
	"LOG_LEVEL":          "info",
}

// stringToDurationHookFunc parses Go duration strings such as "50ms".
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc parses human-readable sizes such as "200MB".
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(data.(string))); err != nil {
			return data, nil
		}
		return int64(size.Bytes()), nil
	}
}

// LoadEnv reads configuration from transcriber.yaml (working directory or
// the app directory) overlaid by environment variables.
func LoadEnv() (Env, error) {
	return loadEnv(".", AppDir())
}

func loadEnv(configPaths ...string) (Env, error) {
	vp := viper.New()
	for key, value := range envDefaults {
		vp.SetDefault(key, value)
	}

	vp.SetConfigName("transcriber")
	vp.SetConfigType("yaml")
	for _, path := range configPaths {
		vp.AddConfigPath(path)
	}
	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Env{}, err
		}
	}

	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var env Env
	err := vp.Unmarshal(&env, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return Env{}, err
	}

	env.WhisperModel = strings.TrimSpace(env.WhisperModel)
	if env.WhisperModel == "" {
		env.WhisperModel = "base"
	}
	return env, nil
}

// EngineConfig maps the environment onto engine settings for modelDir.
func (e Env) EngineConfig(modelDir string) engine.Config {
	return engine.Config{
		Kind:          engine.Kind(e.Engine),
		ModelDir:      modelDir,
		WhisperBin:    e.WhisperBin,
		ExtraArgs:     e.WhisperExtraArgs,
		OpenAIKey:     e.OpenAIKey,
		OpenAIBaseURL: e.OpenAIBaseURL,
		OpenAIModel:   e.OpenAIModel,
	}
}

// DiagnosticsOptions maps the environment onto startup check options.
func (e Env) DiagnosticsOptions() diagnostics.Options {
	return diagnostics.Options{
		FFmpegBin:   e.FFmpegBin,
		FFprobeBin:  e.FFprobeBin,
		Engine:      engine.Kind(e.Engine),
		WhisperBin:  e.WhisperBin,
		Variant:     e.WhisperModel,
		OpenAIKey:   e.OpenAIKey,
		OpenAIBase:  e.OpenAIBaseURL,
		MinFreeDisk: e.MinFreeDisk,
	}
}

// NewPipeline builds a transcription pipeline for the given model directory.
func (e Env) NewPipeline(modelDir string) (*transcribe.Pipeline, error) {
	loader, err := engine.NewLoader(e.EngineConfig(modelDir), nil)
	if err != nil {
		return nil, fmt.Errorf("configure engine: %w", err)
	}
	return transcribe.NewPipeline(transcribe.Config{
		FFmpegBin:  e.FFmpegBin,
		FFprobeBin: e.FFprobeBin,
		MaxWindow:  e.ChunkSeconds,
		Loader:     loader,
	}), nil
}
