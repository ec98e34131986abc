package media

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrDurationUnknown reports that neither duration query produced a positive value.
var ErrDurationUnknown = errors.New("media duration unknown")

// ProbeSource names the ffprobe query that produced a duration.
type ProbeSource string

const (
	ProbeSourceNone   ProbeSource = ""
	ProbeSourceFormat ProbeSource = "format"
	ProbeSourceStream ProbeSource = "stream"
)

// ProbeResult is the outcome of a duration probe. Seconds is zero when the
// duration is unknown, in which case Err carries the reasons.
type ProbeResult struct {
	Seconds float64
	Source  ProbeSource
	Err     error
}

// Known reports whether a positive duration was found.
func (r ProbeResult) Known() bool {
	return r.Err == nil && r.Seconds > 0
}

// Prober queries media duration through ffprobe.
type Prober struct {
	ffprobePath string
	runner      CommandRunner
}

// NewProber constructs a prober for the given ffprobe binary.
func NewProber(ffprobePath string, runner CommandRunner) *Prober {
	if strings.TrimSpace(ffprobePath) == "" {
		ffprobePath = "ffprobe"
	}
	if runner == nil {
		runner = &ExecRunner{}
	}
	return &Prober{ffprobePath: ffprobePath, runner: runner}
}

// Probe returns the container duration, falling back to the first audio
// stream duration. Tool failures are folded into an unknown result.
func (p *Prober) Probe(ctx context.Context, path string) ProbeResult {
	seconds, formatErr := p.query(ctx, buildFormatDurationArgs(path))
	if formatErr == nil {
		return ProbeResult{Seconds: seconds, Source: ProbeSourceFormat}
	}

	seconds, streamErr := p.query(ctx, buildStreamDurationArgs(path))
	if streamErr == nil {
		return ProbeResult{Seconds: seconds, Source: ProbeSourceStream}
	}

	return ProbeResult{
		Err: fmt.Errorf("%w: format query: %v; stream query: %v", ErrDurationUnknown, formatErr, streamErr),
	}
}

func (p *Prober) query(ctx context.Context, args []string) (float64, error) {
	res, err := p.runner.Run(ctx, p.ffprobePath, args...)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %s", err, msg)
	}
	return parseDuration(res.Stdout)
}

// parseDuration reads the first non-empty line of ffprobe output as seconds.
func parseDuration(out string) (float64, error) {
	line := ""
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	if line == "" {
		return 0, errors.New("empty ffprobe output")
	}
	seconds, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", line, err)
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return 0, fmt.Errorf("non-positive duration %q", line)
	}
	return seconds, nil
}

func buildFormatDurationArgs(path string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=nw=1:nk=1",
		path,
	}
}

func buildStreamDurationArgs(path string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=duration",
		"-of", "default=nw=1:nk=1",
		path,
	}
}
