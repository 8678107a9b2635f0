// Package runner executes the external speech tools, either on the host or
// inside a sidecar container.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Result is the outcome of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner runs shell command lines.
type Runner interface {
	// Run executes command with sh -c in dir. A non-zero exit is reported
	// through Result.ExitCode; err is reserved for commands that could not
	// be started or awaited.
	Run(ctx context.Context, command, dir string) (Result, error)

	// Available reports whether binary can be resolved by the runner.
	Available(ctx context.Context, binary string) bool
}

// Shell runs commands on the local host.
type Shell struct{}

// NewShell returns a host runner.
func NewShell() *Shell {
	return &Shell{}
}

// Run executes command through sh -c.
func (s *Shell) Run(ctx context.Context, command, dir string) (Result, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("run %q: %w", firstWord(command), err)
	}
	return res, nil
}

// Available looks binary up on PATH.
func (s *Shell) Available(_ context.Context, binary string) bool {
	if binary == "" {
		return false
	}
	_, err := exec.LookPath(binary)
	return err == nil
}

// Binary extracts the executable name from a command template.
func Binary(template string) string {
	return strings.Trim(firstWord(template), `"'`)
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
