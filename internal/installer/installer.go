// Package installer puts pyenv into a build workspace by downloading and
// running the pyenv-installer script.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"pyenvdelta/internal/runner"
	"pyenvdelta/internal/workspace"
)

const (
	// DefaultURL is used when no installer URL is configured.
	DefaultURL = "https://raw.githubusercontent.com/pyenv/pyenv-installer/master/bin/pyenv-installer"

	// ScriptName is the file the installer is downloaded to.
	ScriptName = "pyenv-installer"

	// scriptMode is rwxr-xr-x.
	scriptMode = 0755
)

var (
	// ErrFetch wraps failures downloading or preparing the installer script.
	ErrFetch = errors.New("cannot fetch installer")

	// ErrRun wraps failures launching the installer script.
	ErrRun = errors.New("cannot run installer")
)

// Installer downloads and runs the pyenv installer in a workspace.
type Installer struct {
	files  workspace.Files
	runner runner.Runner
	sink   io.Writer
	env    []string
	logger *slog.Logger
}

// New creates an Installer. Installer output is streamed to sink.
func New(files workspace.Files, r runner.Runner, sink io.Writer, logger *slog.Logger) *Installer {
	if sink == nil {
		sink = io.Discard
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Installer{files: files, runner: r, sink: sink, logger: logger}
}

// WithEnv sets the environment the installer runs with. Nil inherits the
// current process environment.
func (i *Installer) WithEnv(env []string) *Installer {
	i.env = env
	return i
}

// ResolveURL returns rawURL, or DefaultURL when rawURL is empty.
func ResolveURL(rawURL string) string {
	if rawURL == "" {
		return DefaultURL
	}
	return rawURL
}

// Install downloads the script at rawURL into the workspace, makes it
// executable and runs it with the workspace as current directory. It returns
// the installer's exit status; a non-zero status is not an error here.
func (i *Installer) Install(ctx context.Context, rawURL string) (int, error) {
	rawURL = ResolveURL(rawURL)
	fmt.Fprintln(i.sink, "Installing pyenv")
	i.logger.Info("installing pyenv", "url", rawURL, "workspace", i.files.Dir())

	if err := i.files.CopyFromURL(ctx, ScriptName, rawURL); err != nil {
		return -1, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if err := i.files.Chmod(ScriptName, scriptMode); err != nil {
		return -1, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	code, err := i.runner.Run(ctx, runner.Cmd{
		Args:   []string{i.files.Child(ScriptName)},
		Dir:    i.files.Dir(),
		Env:    i.env,
		Stdout: i.sink,
		Stderr: i.sink,
	})
	if err != nil {
		return code, fmt.Errorf("%w: %w", ErrRun, err)
	}

	i.logger.Info("installer finished", "exit_code", code)
	return code, nil
}
