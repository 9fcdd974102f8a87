// Package delta computes the variables a build step must set to move from a
// baseline environment to an activated one.
package delta

import (
	"os"
	"sort"
	"strings"

	"pyenvdelta/internal/envsnap"
)

const (
	// PathKey is the search-path variable.
	PathKey = "PATH"

	// ManagedPathKey holds only the PATH segments that belong to pyenv.
	// Build hosts treat "PATH+XYZ" entries as segments to prepend to PATH.
	ManagedPathKey = PathKey + "+PYENV"

	// managedMarker identifies a segment inside pyenv's installation tree.
	managedMarker = ".pyenv"
)

// Delta maps variable names to the value that must be applied.
type Delta map[string]string

// ChangeType describes how a variable differs from the baseline.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"   // Variable only in the activated snapshot
	ChangeChanged ChangeType = "changed" // Variable in both with different values
)

// Change explains one variable of a delta.
type Change struct {
	Key    string     `json:"key"`
	Type   ChangeType `json:"type"`
	Before string     `json:"before,omitempty"`
	After  string     `json:"after"`
}

// Compute returns the variables that appeared or changed between before and
// after.
//
// A changed PATH produces two entries: PATH with the full new value and
// PATH+PYENV with only the pyenv segments of it. Variables present only in
// before are not reported; the delta never unsets anything.
func Compute(before, after envsnap.Snapshot) Delta {
	d := make(Delta)
	for k, v := range after {
		if prev, ok := before[k]; ok && prev == v {
			continue
		}
		if k == PathKey {
			d[PathKey] = v
			d[ManagedPathKey] = ManagedSegments(v)
			continue
		}
		d[k] = v
	}
	return d
}

// Explain lists the changes behind Compute in key order.
func Explain(before, after envsnap.Snapshot) []Change {
	changes := []Change{}
	for _, k := range after.Keys() {
		v := after[k]
		prev, ok := before[k]
		switch {
		case !ok:
			changes = append(changes, Change{Key: k, Type: ChangeAdded, After: v})
		case prev != v:
			changes = append(changes, Change{Key: k, Type: ChangeChanged, Before: prev, After: v})
		}
	}
	return changes
}

// ManagedSegments keeps the segments of a search path that live under pyenv's
// hidden directory, joined with the platform path-list separator.
func ManagedSegments(path string) string {
	return filterSegments(path, string(os.PathListSeparator))
}

func filterSegments(path, sep string) string {
	var kept []string
	for _, segment := range strings.Split(path, sep) {
		if strings.Contains(segment, managedMarker) {
			kept = append(kept, segment)
		}
	}
	return strings.Join(kept, sep)
}

// Keys returns the variable names in sorted order.
func (d Delta) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
