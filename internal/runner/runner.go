// Package runner launches child processes and reports their exit status.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

var (
	// ErrEmptyCommand is returned when Cmd.Args is empty.
	ErrEmptyCommand = errors.New("empty command")

	// ErrStart is returned when the process could not be launched.
	ErrStart = errors.New("cannot start process")

	// ErrInterrupted is returned when the process was killed before it exited
	// on its own, either by context cancellation or by a signal.
	ErrInterrupted = errors.New("process interrupted")
)

// waitDelay bounds how long Wait keeps copying output after the process is
// killed.
const waitDelay = 5 * time.Second

// Cmd describes one child process.
type Cmd struct {
	Args   []string  // program and arguments
	Dir    string    // working directory
	Env    []string  // nil inherits the current environment
	Stdout io.Writer // nil discards
	Stderr io.Writer // nil discards
}

// Runner launches a child process, streams its output and blocks until it
// terminates. A non-zero exit is reported through the status, not the error;
// the error is set only when the process could not be launched or was
// interrupted.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (int, error)
}

// ExecRunner runs commands with os/exec. Each child gets its own process
// group and the whole group is killed when ctx is cancelled.
type ExecRunner struct {
	logger *slog.Logger
}

// NewExecRunner creates an ExecRunner. A nil logger discards log output.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ExecRunner{logger: logger}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Cmd) (int, error) {
	if len(c.Args) == 0 {
		return -1, ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	r.logger.Debug("starting process", "command", strings.Join(c.Args, " "), "dir", c.Dir)
	start := time.Now()

	err := cmd.Run()
	if err == nil {
		r.logger.Debug("process exited", "command", c.Args[0], "exit_code", 0, "duration", time.Since(start))
		return 0, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, fmt.Errorf("%w: %s: %w", ErrInterrupted, c.Args[0], ctxErr)
	}

	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil {
		// Exited, but a grandchild still held the output pipes
		return cmd.ProcessState.ExitCode(), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code == -1 {
			// The child process was killed
			return -1, fmt.Errorf("%w: %s: %w", ErrInterrupted, c.Args[0], err)
		}
		r.logger.Debug("process exited", "command", c.Args[0], "exit_code", code, "duration", time.Since(start))
		return code, nil
	}

	return -1, fmt.Errorf("%w: %s: %w", ErrStart, c.Args[0], err)
}
