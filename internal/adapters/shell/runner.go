// Package shell runs external VCS commands.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"

	"github.com/smortex/r10k/internal/core/ports"
	"go.trai.ch/zerr"
)

// Runner executes commands and captures their standard output.
type Runner struct{}

// NewRunner creates a new Runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Output runs name with args in dir and returns its standard output.
// Standard error is streamed to the progress vertex carried by ctx, if any,
// and attached to the returned error when the command fails.
func (r *Runner) Output(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // arguments are built by the transports
	cmd.Dir = dir
	cmd.Env = append(cmd.Environ(), "LC_ALL=C")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if vertex, ok := ports.VertexFromContext(ctx); ok {
		cmd.Stderr = io.MultiWriter(&stderr, vertex.Stderr())
	}

	if err := cmd.Run(); err != nil {
		// Capture exit code if possible
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		err = zerr.With(zerr.Wrap(err, "command failed"), "exit_code", exitCode)
		err = zerr.With(err, "command", name+" "+strings.Join(args, " "))
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = zerr.With(err, "stderr", msg)
		}
		return stdout.Bytes(), err
	}

	return stdout.Bytes(), nil
}
