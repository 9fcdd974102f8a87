// Package envsnap parses point-in-time captures of exported shell variables.
// A capture is the text bash prints for the `export` builtin, one
// `declare -x NAME="value"` line per variable.
package envsnap

import (
	"sort"
	"strings"
)

// declarePrefix is the token bash puts in front of every exported variable.
const declarePrefix = "declare -x "

// Snapshot maps variable names to values.
type Snapshot map[string]string

// Parse converts `export` output into a Snapshot.
//
// Lines are split on both LF and CR, empty fragments are skipped, a leading
// "declare -x " is stripped and the remainder is split on the first "=".
// Every double quote is removed from the value. Lines with no "=" (variables
// that are exported but unset) are dropped. A repeated name keeps the last value.
func Parse(export string) Snapshot {
	snap := make(Snapshot)
	lines := strings.FieldsFunc(export, func(r rune) bool {
		return r == '\n' || r == '\r'
	})
	for _, line := range lines {
		line = strings.TrimPrefix(line, declarePrefix)
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		snap[name] = strings.ReplaceAll(value, `"`, "")
	}
	return snap
}

// FromEnviron converts an environ slice (["KEY=VALUE", ...]) into a Snapshot.
// Values can contain "=", so only the first one separates name and value.
func FromEnviron(environ []string) Snapshot {
	snap := make(Snapshot, len(environ))
	for _, entry := range environ {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			// No "=" found, skip malformed entry
			continue
		}
		snap[name] = value
	}
	return snap
}

// Keys returns the variable names in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Environ renders the snapshot as a sorted "KEY=VALUE" slice.
func (s Snapshot) Environ() []string {
	environ := make([]string, 0, len(s))
	for _, k := range s.Keys() {
		environ = append(environ, k+"="+s[k])
	}
	return environ
}
