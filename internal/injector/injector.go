// Package injector applies an environment delta to a process environment.
package injector

import (
	"os"
	"sort"
	"strings"

	"pyenvdelta/internal/delta"
)

// Apply returns environ with d applied. Plain keys replace any existing
// value. A key of the form "BASE+SUFFIX" prepends the path-list segments of
// its value to BASE, skipping segments BASE already contains; the suffixed
// key itself is not exported. Unchanged variables keep their order and
// changed ones are appended in key order.
func Apply(environ []string, d delta.Delta) []string {
	vars := make(map[string]string, len(environ))
	order := make([]string, 0, len(environ))
	for _, env := range environ {
		k, v, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		if _, seen := vars[k]; !seen {
			order = append(order, k)
		}
		vars[k] = v
	}

	changed := make(map[string]bool)
	var plus []string
	for _, k := range d.Keys() {
		if _, _, ok := strings.Cut(k, "+"); ok {
			plus = append(plus, k)
			continue
		}
		vars[k] = d[k]
		changed[k] = true
	}
	for _, k := range plus {
		base, _, _ := strings.Cut(k, "+")
		vars[base] = Prepend(vars[base], d[k])
		changed[base] = true
	}

	result := make([]string, 0, len(vars))
	for _, k := range order {
		if !changed[k] {
			result = append(result, k+"="+vars[k])
		}
	}
	keys := make([]string, 0, len(changed))
	for k := range changed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		result = append(result, k+"="+vars[k])
	}
	return result
}

// Prepend puts the segments of extra that are missing from list in front of
// list, keeping their order.
func Prepend(list, extra string) string {
	sep := string(os.PathListSeparator)
	present := make(map[string]bool)
	for _, seg := range strings.Split(list, sep) {
		present[seg] = true
	}

	var head []string
	for _, seg := range strings.Split(extra, sep) {
		if seg == "" || present[seg] {
			continue
		}
		present[seg] = true
		head = append(head, seg)
	}
	if len(head) == 0 {
		return list
	}
	if list == "" {
		return strings.Join(head, sep)
	}
	return strings.Join(head, sep) + sep + list
}

// Lookup returns the value of key in environ.
func Lookup(environ []string, key string) (string, bool) {
	prefix := key + "="
	for i := len(environ) - 1; i >= 0; i-- {
		if strings.HasPrefix(environ[i], prefix) {
			return strings.TrimPrefix(environ[i], prefix), true
		}
	}
	return "", false
}
