package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pyenvdelta/internal/cli"
	"pyenvdelta/internal/config"
	"pyenvdelta/internal/delta"
	"pyenvdelta/internal/differ"
	"pyenvdelta/internal/envsnap"
	"pyenvdelta/internal/injector"
	"pyenvdelta/internal/installer"
	"pyenvdelta/internal/launcher"
	"pyenvdelta/internal/record"
	"pyenvdelta/internal/runner"
	"pyenvdelta/internal/workspace"
)

// Exit codes
const (
	exitOK             = 0
	exitUsage          = 1
	exitInstallFailure = 2
	exitShellFailure   = 3
	exitIOFailure      = 4
	exitRecordNotFound = 5
	exitPermission     = 126
	exitNotFound       = 127
)

// launch replaces the process for the run subcommand.
var launch = launcher.Exec

func main() {
	exitCode := run(os.Args[1:], os.Environ(), os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// run orchestrates the full execution flow.
// It returns an exit code (0 for success, non-zero for failure).
// This function is separated from main() to enable testing.
func run(args []string, environ []string, stdout, stderr io.Writer) int {
	cmd, err := cli.ParseArgs(args)
	if err != nil {
		if errors.Is(err, cli.ErrHelp) {
			fmt.Fprint(stdout, cli.Usage())
			return exitOK
		}
		fmt.Fprintln(stderr, "Error:", err)
		return exitUsage
	}

	cfg, err := config.Resolve(config.Sources{
		Flags:      cmd.Flags,
		ConfigPath: cmd.ConfigPath,
		EnvFile:    cmd.EnvFile,
		Environ:    environ,
	})
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitUsage
	}
	logger := newLogger(stderr, cfg.LogLevel)

	switch cmd.Subcommand {
	case cli.SubcommandDiff:
		return runDiff(cmd, stdout, stderr)
	case cli.SubcommandRecords:
		return runRecords(cmd, cfg, environ, stdout, stderr)
	}

	if err := cfg.RequireJob(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitUsage
	}
	format, err := delta.ParseFormat(cmd.Format)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	res, ws, err := compute(ctx, cfg, environ, stderr, logger)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitCodeFor(err)
	}

	if cmd.Explain {
		fmt.Fprint(stderr, delta.FormatCLI(delta.Explain(res.Before, res.After)))
	}
	if cmd.Record {
		rec := record.New(cfg.Name, cfg.Version, installer.ResolveURL(cfg.InstallerURL), ws.Dir(),
			res.Before, res.After, res.Delta, time.Now())
		path, err := record.NewStore(recordDir(cfg, environ)).Save(rec)
		if err != nil {
			fmt.Fprintf(stderr, "Error: cannot save record: %v\n", err)
			return exitIOFailure
		}
		logger.Info("record saved", "id", rec.ID, "path", path)
	}

	if cmd.Subcommand == cli.SubcommandRun {
		if cmd.Output != "" {
			if err := delta.WriteToFile(res.Delta, format, cmd.Output); err != nil {
				fmt.Fprintf(stderr, "Error: cannot write delta: %v\n", err)
				return exitIOFailure
			}
		}
		return runTarget(cmd, environ, res.Delta, stderr)
	}

	return emit(res.Delta, format, cmd.Output, stdout, stderr)
}

func compute(ctx context.Context, cfg config.Config, environ []string, sink io.Writer, logger *slog.Logger) (differ.Result, *workspace.Workspace, error) {
	if err := os.MkdirAll(cfg.Workspace, 0755); err != nil {
		return differ.Result{}, nil, &differ.Error{Kind: differ.KindIO, Stage: "workspace", Err: err}
	}
	ws, err := workspace.New(cfg.Workspace)
	if err != nil {
		return differ.Result{}, nil, &differ.Error{Kind: differ.KindIO, Stage: "workspace", Err: err}
	}

	d := differ.New(ws, cfg.Name, runner.NewExecRunner(logger), sink,
		differ.WithLogger(logger),
		differ.WithCandidateDirs(cfg.CandidateDirs),
		differ.WithShell(cfg.Shell),
		differ.WithEnviron(environ),
	)
	res, err := d.Compute(ctx, cfg.Version, cfg.InstallerURL)
	return res, ws, err
}

// runTarget applies d to the environment and execs the target command.
// It only returns on failure.
func runTarget(cmd cli.Command, environ []string, d delta.Delta, stderr io.Writer) int {
	env := injector.Apply(environ, d)
	if err := launch(cmd.Target, cmd.Args, env); err != nil {
		fmt.Fprintf(stderr, "Error: cannot execute %s: %v\n", cmd.Target, err)
		switch {
		case launcher.IsNotFound(err):
			return exitNotFound
		case launcher.IsPermissionDenied(err):
			return exitPermission
		}
		return exitUsage
	}
	return exitOK
}

func runDiff(cmd cli.Command, stdout, stderr io.Writer) int {
	format, err := delta.ParseFormat(cmd.Format)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitUsage
	}

	before, err := os.ReadFile(cmd.BeforeFile)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitIOFailure
	}
	after, err := os.ReadFile(cmd.AfterFile)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitIOFailure
	}

	b, a := envsnap.Parse(string(before)), envsnap.Parse(string(after))
	if cmd.Explain {
		fmt.Fprint(stderr, delta.FormatCLI(delta.Explain(b, a)))
	}
	return emit(delta.Compute(b, a), format, cmd.Output, stdout, stderr)
}

// emit writes d to path, or to stdout when path is empty.
func emit(d delta.Delta, format delta.Format, path string, stdout, stderr io.Writer) int {
	if path != "" {
		if err := delta.WriteToFile(d, format, path); err != nil {
			fmt.Fprintf(stderr, "Error: cannot write delta: %v\n", err)
			return exitIOFailure
		}
		return exitOK
	}
	out, err := delta.Render(d, format)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitUsage
	}
	fmt.Fprint(stdout, out)
	return exitOK
}

func runRecords(cmd cli.Command, cfg config.Config, environ []string, stdout, stderr io.Writer) int {
	store := record.NewStore(recordDir(cfg, environ))

	switch cmd.Action {
	case cli.RecordsList:
		summaries, err := store.List()
		if err != nil {
			fmt.Fprintf(stderr, "Error: cannot list records: %v\n", err)
			return exitIOFailure
		}
		if cmd.JSONOutput {
			return printJSON(summaries, stdout, stderr)
		}
		if len(summaries) == 0 {
			fmt.Fprintln(stdout, "No records found.")
			return exitOK
		}
		for _, s := range summaries {
			fmt.Fprintf(stdout, "%s  %s-%s  %d variable(s)  %s\n",
				s.ID, s.Name, s.Version, s.Variables, s.Timestamp.Format(time.RFC3339))
		}
		return exitOK

	case cli.RecordsShow:
		rec, err := store.Load(cmd.RecordID)
		if err != nil {
			return recordError(err, cmd.RecordID, stderr)
		}
		if cmd.JSONOutput {
			return printJSON(rec, stdout, stderr)
		}
		fmt.Fprintf(stdout, "Record:      %s\n", rec.ID)
		fmt.Fprintf(stdout, "Virtualenv:  %s-%s\n", rec.Name, rec.Version)
		fmt.Fprintf(stdout, "Installer:   %s\n", rec.InstallerURL)
		fmt.Fprintf(stdout, "Workspace:   %s\n", rec.Workspace)
		fmt.Fprintf(stdout, "Recorded:    %s\n\n", rec.Timestamp.Format(time.RFC3339))
		fmt.Fprint(stdout, delta.FormatCLI(delta.Explain(rec.Before, rec.After)))
		return exitOK

	case cli.RecordsDelete:
		if err := store.Delete(cmd.RecordID); err != nil {
			return recordError(err, cmd.RecordID, stderr)
		}
		fmt.Fprintf(stdout, "Deleted record %s\n", cmd.RecordID)
		return exitOK

	case cli.RecordsPrune:
		n, err := store.Prune(time.Duration(cmd.PruneDays) * 24 * time.Hour)
		if err != nil {
			fmt.Fprintf(stderr, "Error: cannot prune records: %v\n", err)
			return exitIOFailure
		}
		fmt.Fprintf(stdout, "Pruned %d record(s)\n", n)
		return exitOK
	}

	fmt.Fprintf(stderr, "Error: unknown records action %q\n", cmd.Action)
	return exitUsage
}

func recordError(err error, id string, stderr io.Writer) int {
	if errors.Is(err, record.ErrRecordNotFound) {
		fmt.Fprintf(stderr, "Error: record not found: %s\n", id)
		return exitRecordNotFound
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitIOFailure
}

func printJSON(v any, stdout, stderr io.Writer) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	fmt.Fprintln(stdout, string(data))
	return exitOK
}

func recordDir(cfg config.Config, environ []string) string {
	if cfg.RecordDir != "" {
		return cfg.RecordDir
	}
	return record.ResolveDir(environ)
}

// exitCodeFor maps a computation error to the process exit code.
func exitCodeFor(err error) int {
	switch {
	case differ.IsInstallationFailure(err):
		return exitInstallFailure
	case differ.IsLaunchFailure(err):
		return exitShellFailure
	case differ.IsIOFailure(err):
		return exitIOFailure
	}
	return exitUsage
}

func newLogger(w io.Writer, level string) *slog.Logger {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
