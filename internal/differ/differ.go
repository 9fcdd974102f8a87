// Package differ computes the environment changes made by activating a
// pyenv-managed Python virtualenv in a build workspace.
//
// A computation installs pyenv, captures the shell environment before and
// after running the activation script, and diffs the two captures.
package differ

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"pyenvdelta/internal/delta"
	"pyenvdelta/internal/envsnap"
	"pyenvdelta/internal/installer"
	"pyenvdelta/internal/runner"
	"pyenvdelta/internal/script"
	"pyenvdelta/internal/workspace"
)

const (
	// BaselineFile holds the export capture taken before activation.
	BaselineFile = "before.env"

	// DefaultShell runs both capture commands.
	DefaultShell = "bash"

	stageInstall    = "install"
	stageBaseline   = "baseline"
	stageActivation = "activation"
)

var (
	errInstallFailed = errors.New("failed to install version manager")
	errShellFailed   = errors.New("failed to fork shell")
)

// Result holds both captures and the delta between them.
type Result struct {
	Before envsnap.Snapshot
	After  envsnap.Snapshot
	Delta  delta.Delta
}

// Differ runs the install, capture and diff steps for one job.
type Differ struct {
	files         workspace.Files
	name          string
	runner        runner.Runner
	sink          io.Writer
	logger        *slog.Logger
	candidateDirs []string
	shell         string
	environ       []string
}

// Option configures a Differ.
type Option func(*Differ)

// WithLogger sets the stage logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Differ) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithCandidateDirs overrides the directories probed for the pyenv binary.
func WithCandidateDirs(dirs []string) Option {
	return func(d *Differ) {
		if len(dirs) > 0 {
			d.candidateDirs = append([]string(nil), dirs...)
		}
	}
}

// WithShell overrides the shell used for both captures.
func WithShell(shell string) Option {
	return func(d *Differ) {
		if shell != "" {
			d.shell = shell
		}
	}
}

// WithEnviron sets the environment for the installer and both captures.
// Nil inherits the current process environment.
func WithEnviron(environ []string) Option {
	return func(d *Differ) {
		d.environ = environ
	}
}

// New creates a Differ for the job name working in files. Subprocess output
// is streamed to sink.
func New(files workspace.Files, name string, r runner.Runner, sink io.Writer, opts ...Option) *Differ {
	if sink == nil {
		sink = io.Discard
	}
	d := &Differ{
		files:         files,
		name:          name,
		runner:        r,
		sink:          sink,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		candidateDirs: script.DefaultCandidateDirs(),
		shell:         DefaultShell,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ComputeDelta returns the variables that activating version changes.
// An empty installerURL uses installer.DefaultURL.
func (d *Differ) ComputeDelta(ctx context.Context, version, installerURL string) (delta.Delta, error) {
	res, err := d.Compute(ctx, version, installerURL)
	if err != nil {
		return nil, err
	}
	return res.Delta, nil
}

// Compute is ComputeDelta returning both captures as well. Invalid
// parameters are rejected before anything is installed.
func (d *Differ) Compute(ctx context.Context, version, installerURL string) (Result, error) {
	params := script.Params{
		CandidateDirs: d.candidateDirs,
		Version:       version,
		Name:          d.name,
	}
	activation, err := script.Render(params)
	if err != nil {
		return Result{}, err
	}

	if err := d.install(ctx, installerURL); err != nil {
		return Result{}, err
	}

	d.logger.Info("capturing baseline environment", "file", BaselineFile)
	before, err := d.capture(ctx, stageBaseline, "export > "+BaselineFile, BaselineFile)
	if err != nil {
		return Result{}, err
	}

	d.logger.Info("activating virtualenv", "virtualenv", params.VirtualEnv(), "file", script.CaptureFile)
	after, err := d.capture(ctx, stageActivation, activation, script.CaptureFile)
	if err != nil {
		return Result{}, err
	}

	result := Result{Before: before, After: after, Delta: delta.Compute(before, after)}
	d.logger.Info("environment delta computed", "variables", len(result.Delta))
	return result, nil
}

func (d *Differ) install(ctx context.Context, installerURL string) error {
	inst := installer.New(d.files, d.runner, d.sink, d.logger).WithEnv(d.environ)
	code, err := inst.Install(ctx, installerURL)
	switch {
	case errors.Is(err, installer.ErrFetch):
		return stageError(KindIO, stageInstall, err)
	case err != nil:
		return stageError(KindInstallation, stageInstall, err)
	case code != 0:
		return stageError(KindInstallation, stageInstall,
			fmt.Errorf("%w: exit status %d", errInstallFailed, code))
	}
	return nil
}

// capture runs command in the shell and parses the export dump it leaves in
// file.
func (d *Differ) capture(ctx context.Context, stage, command, file string) (envsnap.Snapshot, error) {
	code, err := d.runner.Run(ctx, runner.Cmd{
		Args:   []string{d.shell, "-c", command},
		Dir:    d.files.Dir(),
		Env:    d.environ,
		Stdout: d.sink,
		Stderr: d.sink,
	})
	if err != nil {
		return nil, stageError(KindLaunch, stage, fmt.Errorf("%w: %w", errShellFailed, err))
	}
	if code != 0 {
		return nil, stageError(KindLaunch, stage, fmt.Errorf("%w: exit status %d", errShellFailed, code))
	}

	content, err := d.files.ReadToString(file)
	if err != nil {
		return nil, stageError(KindIO, stage, fmt.Errorf("reading %s: %w", file, err))
	}
	return envsnap.Parse(content), nil
}
