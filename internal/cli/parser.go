// Package cli parses pyenvdelta command lines.
package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"pyenvdelta/internal/config"

	"github.com/spf13/pflag"
)

// ErrNoSubcommand is returned when no known subcommand is provided
var ErrNoSubcommand = errors.New("missing subcommand: usage: pyenvdelta <compute|diff|run|records> [flags]")

// ErrNoCommand is returned when no command is provided after "run"
var ErrNoCommand = errors.New("no command provided: usage: pyenvdelta run [flags] <command> [args...]")

// ErrUsage wraps flag and argument errors
var ErrUsage = errors.New("usage error")

// ErrHelp is returned for -h and --help
var ErrHelp = pflag.ErrHelp

// Subcommand represents the CLI subcommand
type Subcommand string

const (
	SubcommandCompute Subcommand = "compute"
	SubcommandDiff    Subcommand = "diff"
	SubcommandRun     Subcommand = "run"
	SubcommandRecords Subcommand = "records"
)

// RecordsAction is the operation of the records subcommand
type RecordsAction string

const (
	RecordsList   RecordsAction = "list"
	RecordsShow   RecordsAction = "show"
	RecordsDelete RecordsAction = "delete"
	RecordsPrune  RecordsAction = "prune"
)

// Command represents the parsed CLI input
type Command struct {
	Subcommand Subcommand

	// Settings given as flags; empty fields are unset.
	Flags      config.Config
	ConfigPath string // --config <path>
	EnvFile    string // --env-file <path>

	// Output flags (compute, diff, run)
	Format  string        // --format text|json|dotenv
	Output  string        // --output <path>
	Explain bool          // --explain
	Record  bool          // --record (compute, run)
	Timeout time.Duration // --timeout (compute, run)

	// diff
	BeforeFile string
	AfterFile  string

	// run
	Target string
	Args   []string

	// records
	Action     RecordsAction
	RecordID   string
	PruneDays  int
	JSONOutput bool // --json (records list, records show)
}

// ParseArgs parses CLI arguments into a Command.
// It expects args to be os.Args[1:] (excluding the program name).
func ParseArgs(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, ErrNoSubcommand
	}

	cmd := Command{Subcommand: Subcommand(args[0])}
	switch cmd.Subcommand {
	case SubcommandCompute, SubcommandRun:
		return parseJob(cmd, args[1:])
	case SubcommandDiff:
		return parseDiff(cmd, args[1:])
	case SubcommandRecords:
		return parseRecords(cmd, args[1:])
	case "-h", "--help", "help":
		return Command{}, ErrHelp
	}
	return Command{}, ErrNoSubcommand
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false
	return fs
}

func bindOutput(fs *pflag.FlagSet, cmd *Command) {
	fs.StringVar(&cmd.Format, "format", "text", "Output format: text, json or dotenv.")
	fs.StringVarP(&cmd.Output, "output", "o", "", "Write the delta to this file instead of stdout.")
	fs.BoolVar(&cmd.Explain, "explain", false, "Print a per-variable change summary to stderr.")
	fs.StringVar(&cmd.Flags.LogLevel, "log-level", "", "Log level: debug, info, warn or error.")
}

func bindJob(fs *pflag.FlagSet, cmd *Command) {
	fs.StringVar(&cmd.Flags.Name, "name", "", "Job name; the virtualenv is <name>-<version>.")
	fs.StringVar(&cmd.Flags.Version, "version", "", "Python version to install and activate.")
	fs.StringVar(&cmd.Flags.InstallerURL, "installer-url", "", "pyenv-installer location (http, https or file URL).")
	fs.StringVarP(&cmd.Flags.Workspace, "workspace", "w", "", "Working directory for the installer and capture files.")
	fs.StringSliceVar(&cmd.Flags.CandidateDirs, "candidate-dir", nil, "Directory probed for the pyenv binary; repeatable, tried in order.")
	fs.StringVar(&cmd.Flags.Shell, "shell", "", "Shell used for the environment captures.")
	fs.StringVar(&cmd.Flags.RecordDir, "record-dir", "", "Directory records are stored in.")
	fs.StringVarP(&cmd.ConfigPath, "config", "c", "", "YAML config file (default <workspace>/"+config.FileName+").")
	fs.StringVar(&cmd.EnvFile, "env-file", "", "Dotenv file with PYENVDELTA_* settings.")
	fs.BoolVar(&cmd.Record, "record", false, "Store the result in the record directory.")
	fs.DurationVar(&cmd.Timeout, "timeout", 0, "Abort the computation after this long (0 means no limit).")
}

func parseJob(cmd Command, args []string) (Command, error) {
	fs := newFlagSet(string(cmd.Subcommand))
	bindJob(fs, &cmd)
	bindOutput(fs, &cmd)
	if cmd.Subcommand == SubcommandRun {
		// flags after the target belong to the target
		fs.SetInterspersed(false)
	}
	if err := parse(fs, args); err != nil {
		return Command{}, err
	}
	if cmd.Timeout < 0 {
		return Command{}, fmt.Errorf("%w: --timeout must not be negative", ErrUsage)
	}

	rest := fs.Args()
	if cmd.Subcommand == SubcommandCompute {
		if len(rest) > 0 {
			return Command{}, fmt.Errorf("%w: unexpected argument %q", ErrUsage, rest[0])
		}
		return cmd, nil
	}

	if len(rest) == 0 {
		return Command{}, ErrNoCommand
	}
	cmd.Target = rest[0]
	if len(rest) > 1 {
		cmd.Args = rest[1:]
	}
	return cmd, nil
}

func parseDiff(cmd Command, args []string) (Command, error) {
	fs := newFlagSet("diff")
	bindOutput(fs, &cmd)
	if err := parse(fs, args); err != nil {
		return Command{}, err
	}
	if fs.NArg() != 2 {
		return Command{}, fmt.Errorf("%w: usage: pyenvdelta diff [flags] <before> <after>", ErrUsage)
	}
	cmd.BeforeFile, cmd.AfterFile = fs.Arg(0), fs.Arg(1)
	return cmd, nil
}

func parseRecords(cmd Command, args []string) (Command, error) {
	usage := fmt.Errorf("%w: usage: pyenvdelta records <list|show <id>|delete <id>|prune --days N>", ErrUsage)
	if len(args) == 0 {
		return Command{}, usage
	}
	cmd.Action = RecordsAction(args[0])

	fs := newFlagSet("records " + args[0])
	fs.StringVar(&cmd.Flags.RecordDir, "record-dir", "", "Directory records are stored in.")
	fs.StringVar(&cmd.Flags.LogLevel, "log-level", "", "Log level: debug, info, warn or error.")

	wantID := false
	switch cmd.Action {
	case RecordsList:
		fs.BoolVar(&cmd.JSONOutput, "json", false, "Print summaries as JSON.")
	case RecordsShow:
		fs.BoolVar(&cmd.JSONOutput, "json", false, "Print the record as JSON.")
		wantID = true
	case RecordsDelete:
		wantID = true
	case RecordsPrune:
		fs.IntVar(&cmd.PruneDays, "days", 0, "Delete records older than this many days.")
	default:
		return Command{}, usage
	}
	if err := parse(fs, args[1:]); err != nil {
		return Command{}, err
	}

	switch {
	case wantID && fs.NArg() != 1:
		return Command{}, fmt.Errorf("%w: records %s requires a record ID", ErrUsage, cmd.Action)
	case !wantID && fs.NArg() != 0:
		return Command{}, fmt.Errorf("%w: unexpected argument %q", ErrUsage, fs.Arg(0))
	case cmd.Action == RecordsPrune && cmd.PruneDays <= 0:
		return Command{}, fmt.Errorf("%w: records prune requires --days greater than zero", ErrUsage)
	}
	if wantID {
		cmd.RecordID = fs.Arg(0)
	}
	return cmd, nil
}

func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return ErrHelp
		}
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	return nil
}

// Usage returns the help text.
func Usage() string {
	return `Usage: pyenvdelta <command> [flags]

Compute the environment changes made by activating a pyenv virtualenv.

Commands:
  compute            install pyenv, activate <name>-<version> and print the delta
  diff <before> <after>
                     diff two "export" capture files
  run <cmd> [args]   compute the delta, apply it and exec cmd
  records list       list stored records
  records show <id>  print a stored record
  records delete <id>
  records prune --days N

Job flags (compute, run):
  --name, --version, --installer-url, -w/--workspace, --candidate-dir,
  --shell, --record-dir, -c/--config, --env-file, --record, --timeout

Output flags (compute, run, diff):
  --format text|json|dotenv, -o/--output, --explain, --log-level

Settings are also read from PYENVDELTA_* variables, a dotenv file and
pyenvdelta.yaml in the workspace; flags take precedence.
`
}
