package media

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"whisper-transcriber/internal/chunk"
)

// Extractor cuts one time window out of a media file as normalized PCM.
type Extractor struct {
	ffmpegPath  string
	runner      CommandRunner
	stat        func(name string) (os.FileInfo, error)
	readSamples func(path string) ([]float32, error)
}

// NewExtractor constructs an extractor for the given ffmpeg binary.
func NewExtractor(ffmpegPath string, runner CommandRunner) *Extractor {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	if runner == nil {
		runner = &ExecRunner{}
	}
	return &Extractor{
		ffmpegPath:  ffmpegPath,
		runner:      runner,
		stat:        os.Stat,
		readSamples: ReadSamplesFile,
	}
}

// NewExtractorForTests constructs an extractor with an injectable sample reader.
func NewExtractorForTests(ffmpegPath string, runner CommandRunner, readSamples func(string) ([]float32, error)) *Extractor {
	e := NewExtractor(ffmpegPath, runner)
	if readSamples != nil {
		e.readSamples = readSamples
	}
	return e
}

// Extract writes window w of src to outPath as mono 16 kHz s16 WAV and
// returns the decoded samples. A zero-length window extracts to the end of
// the input. The caller owns outPath and must remove it. Command failures are
// returned as *CommandError.
func (e *Extractor) Extract(ctx context.Context, src string, w chunk.Window, outPath string) ([]float32, error) {
	args := buildExtractArgs(src, w.Start, w.Length, outPath)
	res, err := e.runner.Run(ctx, e.ffmpegPath, args...)
	log := NewCommandLog(e.ffmpegPath, args, res)
	if err != nil {
		return nil, &CommandError{Log: log, Err: fmt.Errorf("ffmpeg window extraction failed: %w", err)}
	}

	if _, err := e.stat(outPath); err != nil {
		return nil, &CommandError{Log: log, Err: fmt.Errorf("ffmpeg completed but output file is missing: %w", err)}
	}

	samples, err := e.readSamples(outPath)
	if err != nil {
		return nil, fmt.Errorf("decode extracted window: %w", err)
	}
	return samples, nil
}

// buildExtractArgs builds ffmpeg args for one normalized window.
func buildExtractArgs(src string, start, length float64, outPath string) []string {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-y",
		"-ss", formatSeconds(start),
		"-i", src,
	}
	if length > 0 {
		args = append(args, "-t", formatSeconds(length))
	}
	return append(args,
		"-vn",
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-c:a", "pcm_s16le",
		outPath,
	)
}

func formatSeconds(v float64) string {
	if v < 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}
