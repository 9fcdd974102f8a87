package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestExecRunner_Success(t *testing.T) {
	skipOnWindows(t)
	var stdout bytes.Buffer
	code, err := NewExecRunner(nil).Run(context.Background(), Cmd{
		Args:   []string{"sh", "-c", "echo hello"},
		Stdout: &stdout,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if strings.TrimSpace(stdout.String()) != "hello" {
		t.Errorf("stdout = %q, want %q", stdout.String(), "hello\n")
	}
}

func TestExecRunner_ExitStatus_Property(t *testing.T) {
	skipOnWindows(t)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20

	properties := gopter.NewProperties(parameters)

	r := NewExecRunner(nil)
	properties.Property("non-zero exit is a status, not an error", prop.ForAll(
		func(status int) bool {
			code, err := r.Run(context.Background(), Cmd{
				Args: []string{"sh", "-c", "exit " + strconv.Itoa(status)},
			})
			return err == nil && code == status
		},
		gen.IntRange(0, 125),
	))

	properties.TestingRun(t)
}

func TestExecRunner_Stderr(t *testing.T) {
	skipOnWindows(t)
	var stderr bytes.Buffer
	code, err := NewExecRunner(nil).Run(context.Background(), Cmd{
		Args:   []string{"sh", "-c", "echo oops >&2; exit 1"},
		Stderr: &stderr,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "oops") {
		t.Errorf("stderr = %q, want it to contain oops", stderr.String())
	}
}

func TestExecRunner_WorkingDirectory(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	code, err := NewExecRunner(nil).Run(context.Background(), Cmd{
		Args: []string{"sh", "-c", "echo here > marker.txt"},
		Dir:  dir,
	})
	if err != nil || code != 0 {
		t.Fatalf("Run() = %d, %v", code, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "marker.txt")); err != nil {
		t.Errorf("marker not written in working directory: %v", err)
	}
}

func TestExecRunner_Env(t *testing.T) {
	skipOnWindows(t)
	var stdout bytes.Buffer
	_, err := NewExecRunner(nil).Run(context.Background(), Cmd{
		Args:   []string{"/bin/sh", "-c", "echo $ONLY_VAR"},
		Env:    []string{"ONLY_VAR=isolated"},
		Stdout: &stdout,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if strings.TrimSpace(stdout.String()) != "isolated" {
		t.Errorf("stdout = %q, want isolated", stdout.String())
	}
}

func TestExecRunner_EmptyCommand(t *testing.T) {
	_, err := NewExecRunner(nil).Run(context.Background(), Cmd{})
	if !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("error = %v, want ErrEmptyCommand", err)
	}
}

func TestExecRunner_MissingProgram(t *testing.T) {
	code, err := NewExecRunner(nil).Run(context.Background(), Cmd{
		Args: []string{"pyenvdelta-no-such-program"},
	})
	if !errors.Is(err, ErrStart) {
		t.Errorf("error = %v, want ErrStart", err)
	}
	if code != -1 {
		t.Errorf("exit code = %d, want -1", code)
	}
}

func TestExecRunner_Cancel(t *testing.T) {
	skipOnWindows(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewExecRunner(nil).Run(ctx, Cmd{
		// the background sleep shares the process group and must die too
		Args: []string{"sh", "-c", "sleep 30 & sleep 30"},
	})
	if !errors.Is(err, ErrInterrupted) {
		t.Errorf("error = %v, want ErrInterrupted", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Run() took %v after cancellation", elapsed)
	}
}
