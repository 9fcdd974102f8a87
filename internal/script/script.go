// Package script renders the bash script that activates a pyenv virtualenv
// and captures the resulting environment.
package script

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// CaptureFile is the file the activation script exports its environment to.
const CaptureFile = "pyenv.env"

var (
	// ErrNoCandidates is returned when no installation directory is configured.
	ErrNoCandidates = errors.New("no pyenv candidate directories")

	// ErrMissingVersion is returned when the Python version is empty.
	ErrMissingVersion = errors.New("python version is required")

	// ErrMissingName is returned when the environment name is empty.
	ErrMissingName = errors.New("environment name is required")

	// ErrUnsafeValue is returned for values that would break out of the
	// quoted shell words they are rendered into.
	ErrUnsafeValue = errors.New("value contains shell metacharacters")
)

// unsafeChars cannot appear in a version, name or directory.
const unsafeChars = "\"'`$\\\n\r;&|<>(){} \t"

// DefaultCandidateDirs returns the directories pyenv is looked up in, in order.
func DefaultCandidateDirs() []string {
	return []string{
		"~/tools/pyenv/bin",
		"~/.pyenv/bin",
	}
}

// Params are the named inputs of the activation script.
type Params struct {
	CandidateDirs []string // tried in order, first existing one wins
	Version       string   // Python version passed to pyenv install
	Name          string   // job name, prefix of the virtualenv
}

// VirtualEnv returns the virtualenv identifier "<name>-<version>".
func (p Params) VirtualEnv() string {
	return VirtualEnvName(p.Name, p.Version)
}

// VirtualEnvName composes the virtualenv identifier for a job and version.
func VirtualEnvName(name, version string) string {
	return name + "-" + version
}

// Validate checks that every parameter can be rendered verbatim.
func (p Params) Validate() error {
	if len(p.CandidateDirs) == 0 {
		return ErrNoCandidates
	}
	if p.Version == "" {
		return ErrMissingVersion
	}
	if p.Name == "" {
		return ErrMissingName
	}
	if strings.ContainsAny(p.Version, unsafeChars) {
		return fmt.Errorf("%w: version %q", ErrUnsafeValue, p.Version)
	}
	if strings.ContainsAny(p.Name, unsafeChars) {
		return fmt.Errorf("%w: name %q", ErrUnsafeValue, p.Name)
	}
	for _, dir := range p.CandidateDirs {
		if dir == "" || strings.ContainsAny(dir, unsafeChars) {
			return fmt.Errorf("%w: candidate directory %q", ErrUnsafeValue, dir)
		}
	}
	return nil
}

// Each candidate block checks the directory, puts it on PATH and evaluates
// pyenv's shell init. Blocks are joined with || so the first existing
// directory wins. Trailing spaces are part of the generated text.
const activationTemplate = "" +
	"{{range $i, $dir := .CandidateDirs}}{{if $i}} || {{end}}" +
	"{ \n" +
	"  [ -d {{$dir}} ] && \n" +
	"  export PATH={{$dir}}:$PATH && \n" +
	"  eval \"$({{$dir}}/pyenv init - )\"; \n" +
	"}" +
	"{{end}}" +
	" && {\n" +
	"  pyenv versions --skip-aliases | grep -q \"{{.Version}}\" \\\n" +
	"  || pyenv install -s \"{{.Version}}\"; \n" +
	"} && {\n" +
	"  pyenv versions --skip-aliases | grep -q \"{{.VirtualEnv}}\" \\\n" +
	"  || pyenv virtualenv {{.Version}} \"{{.VirtualEnv}}\";\n" +
	"} \\\n" +
	"&& export PYENV_VERSION=\"{{.VirtualEnv}}\" \\\n" +
	"&& export > {{.CaptureFile}}"

var activation = template.Must(template.New("activation").Parse(activationTemplate))

type templateData struct {
	Params
	CaptureFile string
}

// Render produces the activation script for p.
func Render(p Params) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := activation.Execute(&buf, templateData{Params: p, CaptureFile: CaptureFile}); err != nil {
		return "", fmt.Errorf("rendering activation script: %w", err)
	}
	return buf.String(), nil
}
