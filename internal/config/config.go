// Package config resolves pyenvdelta settings from flags, environment
// variables, a dotenv file and a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"pyenvdelta/internal/script"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the workspace.
const FileName = "pyenvdelta.yaml"

// Environment variables read by Resolve.
const (
	EnvName         = "PYENVDELTA_NAME"
	EnvVersion      = "PYENVDELTA_VERSION"
	EnvInstallerURL = "PYENVDELTA_INSTALLER_URL"
	EnvWorkspace    = "PYENVDELTA_WORKSPACE"
	EnvRecordDir    = "PYENVDELTA_RECORD_DIR"
	EnvLogLevel     = "PYENVDELTA_LOG_LEVEL"
)

var (
	// ErrMissingName is returned when no job name is configured.
	ErrMissingName = errors.New("job name is required (--name or " + EnvName + ")")

	// ErrMissingVersion is returned when no Python version is configured.
	ErrMissingVersion = errors.New("python version is required (--version or " + EnvVersion + ")")

	// ErrInvalidLogLevel is returned for an unknown log level.
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Config holds resolved settings. Empty fields are unset.
type Config struct {
	Name          string
	Version       string
	InstallerURL  string
	Workspace     string
	CandidateDirs []string
	Shell         string
	RecordDir     string
	LogLevel      string
}

// configFile is the YAML file structure
type configFile struct {
	Name          string   `yaml:"name,omitempty"`
	Version       string   `yaml:"version,omitempty"`
	InstallerURL  string   `yaml:"installer_url,omitempty"`
	Workspace     string   `yaml:"workspace,omitempty"`
	CandidateDirs []string `yaml:"candidate_dirs,omitempty"`
	Shell         string   `yaml:"shell,omitempty"`
	RecordDir     string   `yaml:"record_dir,omitempty"`
	LogLevel      string   `yaml:"log_level,omitempty"`
}

// Defaults returns the settings used when nothing else is configured.
func Defaults() Config {
	return Config{
		Workspace:     ".",
		CandidateDirs: script.DefaultCandidateDirs(),
		Shell:         "bash",
		LogLevel:      "info",
	}
}

// Parse parses YAML content into a Config. Unknown keys are rejected.
func Parse(content []byte) (Config, error) {
	var cf configFile
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("invalid YAML: %w", err)
	}
	return Config(cf), nil
}

// ToYAML serializes a Config back to YAML bytes
func (c Config) ToYAML() ([]byte, error) {
	cf := configFile(c)
	return yaml.Marshal(&cf)
}

// LoadFromPath reads and parses the config file at path.
func LoadFromPath(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, err
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(content)
}

// ReadDotenv reads a dotenv file into a map.
func ReadDotenv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	return values, nil
}

// Merge returns c with every set field of o applied on top.
func (c Config) Merge(o Config) Config {
	if o.Name != "" {
		c.Name = o.Name
	}
	if o.Version != "" {
		c.Version = o.Version
	}
	if o.InstallerURL != "" {
		c.InstallerURL = o.InstallerURL
	}
	if o.Workspace != "" {
		c.Workspace = o.Workspace
	}
	if len(o.CandidateDirs) > 0 {
		c.CandidateDirs = append([]string(nil), o.CandidateDirs...)
	}
	if o.Shell != "" {
		c.Shell = o.Shell
	}
	if o.RecordDir != "" {
		c.RecordDir = o.RecordDir
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	return c
}

// FromVars picks the PYENVDELTA_* settings out of vars.
func FromVars(vars map[string]string) Config {
	return Config{
		Name:         vars[EnvName],
		Version:      vars[EnvVersion],
		InstallerURL: vars[EnvInstallerURL],
		Workspace:    vars[EnvWorkspace],
		RecordDir:    vars[EnvRecordDir],
		LogLevel:     vars[EnvLogLevel],
	}
}

// FromEnviron picks the PYENVDELTA_* settings out of a KEY=VALUE list.
func FromEnviron(environ []string) Config {
	vars := make(map[string]string)
	for _, env := range environ {
		if k, v, ok := strings.Cut(env, "="); ok && strings.HasPrefix(k, "PYENVDELTA_") {
			vars[k] = v
		}
	}
	return FromVars(vars)
}

// Sources names the inputs of Resolve.
type Sources struct {
	Flags      Config   // values given on the command line
	ConfigPath string   // explicit YAML file; must exist when set
	EnvFile    string   // dotenv file; must exist when set
	Environ    []string // process environment
}

// Resolve layers defaults, the YAML file, the dotenv file, the environment
// and the flags, later layers winning. Without an explicit ConfigPath the
// file is looked up as FileName in the workspace and may be absent.
func Resolve(src Sources) (Config, error) {
	var dotenv Config
	if src.EnvFile != "" {
		vars, err := ReadDotenv(src.EnvFile)
		if err != nil {
			return Config{}, err
		}
		dotenv = FromVars(vars)
	}
	env := FromEnviron(src.Environ)

	path := src.ConfigPath
	if path == "" {
		ws := Defaults().Merge(dotenv).Merge(env).Merge(src.Flags).Workspace
		path = filepath.Join(ws, FileName)
	}
	file, err := LoadFromPath(path)
	if err != nil && !(src.ConfigPath == "" && os.IsNotExist(err)) {
		return Config{}, err
	}

	cfg := Defaults().Merge(file).Merge(dotenv).Merge(env).Merge(src.Flags)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that are always required to be well formed.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// RequireJob checks that a job name and version are set.
func (c Config) RequireJob() error {
	if c.Name == "" {
		return ErrMissingName
	}
	if c.Version == "" {
		return ErrMissingVersion
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, name)
}
