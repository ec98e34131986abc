// Package media wraps ffprobe and ffmpeg for duration probing and window extraction.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// String renders the command line for logs.
func (l CommandLog) String() string {
	return strings.TrimSpace(l.Command + " " + strings.Join(l.Args, " "))
}

// CommandResult is a process execution response.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner abstracts process execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// ExecRunner executes commands via os/exec with captured output and no console window.
type ExecRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	hideConsole(cmd)

	err := cmd.Run()
	result := CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// NewCommandLog joins invocation details and the captured result.
func NewCommandLog(name string, args []string, res CommandResult) CommandLog {
	return CommandLog{
		Command:  name,
		Args:     args,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
}

// CommandError attaches the failing invocation to an error.
type CommandError struct {
	Log CommandLog
	Err error
}

// Error formats the failure with command and exit code.
func (e *CommandError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%v (cmd=%s exit=%d)", e.Err, e.Log.Command, e.Log.ExitCode)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *CommandError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
