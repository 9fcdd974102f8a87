package delta

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Format selects how a delta is rendered.
type Format string

const (
	FormatText   Format = "text"   // KEY=value lines, sorted
	FormatJSON   Format = "json"   // {"fingerprint": ..., "variables": {...}}
	FormatDotenv Format = "dotenv" // KEY="value" lines, quoted for dotenv loaders
)

// ErrUnknownFormat is returned for a format name that has no renderer.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat validates a format name. An empty name selects FormatText.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatDotenv:
		return Format(name), nil
	}
	return "", fmt.Errorf("%w: %q (want text, json or dotenv)", ErrUnknownFormat, name)
}

// Render formats the delta in the given format.
func Render(d Delta, format Format) (string, error) {
	switch format {
	case "", FormatText:
		return FormatTextLines(d), nil
	case FormatJSON:
		return FormatJSONDocument(d)
	case FormatDotenv:
		return FormatDotenvFile(d)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// FormatTextLines renders one KEY=value line per variable in key order.
func FormatTextLines(d Delta) string {
	var sb strings.Builder
	for _, k := range d.Keys() {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(d[k])
		sb.WriteByte('\n')
	}
	return sb.String()
}

type jsonDocument struct {
	Fingerprint string            `json:"fingerprint"`
	Variables   map[string]string `json:"variables"`
}

// FormatJSONDocument renders the delta and its fingerprint as indented JSON.
func FormatJSONDocument(d Delta) (string, error) {
	vars := map[string]string(d)
	if vars == nil {
		vars = map[string]string{}
	}
	data, err := json.MarshalIndent(jsonDocument{
		Fingerprint: Fingerprint(d),
		Variables:   vars,
	}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

// FormatDotenvFile renders the delta as KEY="value" lines with values quoted
// and escaped the way godotenv writes them.
func FormatDotenvFile(d Delta) (string, error) {
	if len(d) == 0 {
		return "", nil
	}
	content, err := godotenv.Marshal(d)
	if err != nil {
		return "", err
	}
	return content + "\n", nil
}

// FormatCLI explains changes for terminal output.
func FormatCLI(changes []Change) string {
	if len(changes) == 0 {
		return "No environment changes.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Activation changes %d variable(s):\n", len(changes)))
	for _, c := range changes {
		switch c.Type {
		case ChangeAdded:
			sb.WriteString(fmt.Sprintf("  + %s: (new) → %s\n", c.Key, c.After))
		case ChangeChanged:
			sb.WriteString(fmt.Sprintf("  ~ %s: %s → %s\n", c.Key, c.Before, c.After))
		}
	}
	return sb.String()
}

// WriteToFile writes the rendered delta to path, creating parent directories
// if needed.
func WriteToFile(d Delta, format Format, path string) error {
	content, err := Render(d, format)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return os.WriteFile(path, []byte(content), 0644)
}
