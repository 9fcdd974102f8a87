package installer

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"runtime"
	"strings"
	"testing"

	"pyenvdelta/internal/runner"
	"pyenvdelta/internal/workspace"
)

// recordingRunner records commands and returns a fixed status.
type recordingRunner struct {
	calls  []runner.Cmd
	status int
	err    error
}

func (r *recordingRunner) Run(ctx context.Context, c runner.Cmd) (int, error) {
	r.calls = append(r.calls, c)
	if c.Stdout != nil {
		c.Stdout.Write([]byte("installer output\n"))
	}
	return r.status, r.err
}

func installerServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#!/bin/sh\nexit 0\n"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return ws
}

func TestInstall_Success(t *testing.T) {
	srv := installerServer(t)
	ws := newWorkspace(t)
	r := &recordingRunner{}
	var sink bytes.Buffer

	code, err := New(ws, r, &sink, nil).Install(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}

	if len(r.calls) != 1 {
		t.Fatalf("runner called %d times, want 1", len(r.calls))
	}
	call := r.calls[0]
	if len(call.Args) != 1 || call.Args[0] != ws.Child(ScriptName) {
		t.Errorf("args = %v, want [%s]", call.Args, ws.Child(ScriptName))
	}
	if call.Dir != ws.Dir() {
		t.Errorf("dir = %q, want %q", call.Dir, ws.Dir())
	}
	if call.Stdout != &sink || call.Stderr != &sink {
		t.Error("installer output must go to the sink")
	}

	if !strings.HasPrefix(sink.String(), "Installing pyenv\n") {
		t.Errorf("sink = %q, want it to start with the install banner", sink.String())
	}

	content, err := ws.ReadToString(ScriptName)
	if err != nil {
		t.Fatalf("installer script not written: %v", err)
	}
	if content != "#!/bin/sh\nexit 0\n" {
		t.Errorf("script content = %q", content)
	}
}

func TestInstall_MakesScriptExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX permissions")
	}
	srv := installerServer(t)
	ws := newWorkspace(t)

	if _, err := New(ws, &recordingRunner{}, nil, nil).Install(context.Background(), srv.URL); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	info, err := os.Stat(ws.Child(ScriptName))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0755 {
		t.Errorf("mode = %o, want 755", info.Mode().Perm())
	}
}

func TestInstall_PropagatesExitStatus(t *testing.T) {
	srv := installerServer(t)
	r := &recordingRunner{status: 1}

	code, err := New(newWorkspace(t), r, nil, nil).Install(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestInstall_PassesEnv(t *testing.T) {
	srv := installerServer(t)
	r := &recordingRunner{}
	env := []string{"HOME=/tmp/home"}

	if _, err := New(newWorkspace(t), r, nil, nil).WithEnv(env).Install(context.Background(), srv.URL); err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	if len(r.calls[0].Env) != 1 || r.calls[0].Env[0] != "HOME=/tmp/home" {
		t.Errorf("env = %v, want %v", r.calls[0].Env, env)
	}
}

func TestInstall_DownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	r := &recordingRunner{}

	_, err := New(newWorkspace(t), r, nil, nil).Install(context.Background(), srv.URL)
	if !errors.Is(err, ErrFetch) {
		t.Errorf("error = %v, want ErrFetch", err)
	}
	if !errors.Is(err, workspace.ErrDownload) {
		t.Errorf("error = %v, want it to wrap workspace.ErrDownload", err)
	}
	if len(r.calls) != 0 {
		t.Error("installer must not run when the download fails")
	}
}

func TestInstall_RunFailure(t *testing.T) {
	srv := installerServer(t)
	r := &recordingRunner{status: -1, err: runner.ErrStart}

	_, err := New(newWorkspace(t), r, nil, nil).Install(context.Background(), srv.URL)
	if !errors.Is(err, ErrRun) {
		t.Errorf("error = %v, want ErrRun", err)
	}
}

func TestResolveURL(t *testing.T) {
	if got := ResolveURL(""); got != DefaultURL {
		t.Errorf("ResolveURL(\"\") = %q, want %q", got, DefaultURL)
	}
	if got := ResolveURL("https://mirror.example/pyenv-installer"); got != "https://mirror.example/pyenv-installer" {
		t.Errorf("ResolveURL() = %q", got)
	}
}
