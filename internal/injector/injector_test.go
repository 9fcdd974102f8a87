package injector

import (
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"pyenvdelta/internal/delta"
)

var sep = string(os.PathListSeparator)

func join(segs ...string) string {
	return strings.Join(segs, sep)
}

// genEnviron generates a random environment slice
func genEnviron() gopter.Gen {
	return gen.SliceOf(
		gopter.CombineGens(
			gen.Identifier(),
			gen.AlphaString(),
		).Map(func(vals []interface{}) string {
			return vals[0].(string) + "=" + vals[1].(string)
		}),
	)
}

func TestApply_PlainKeysOverwrite(t *testing.T) {
	environ := []string{"HOME=/home/ci", "PYENV_VERSION=old", "TERM=dumb"}
	got := Apply(environ, delta.Delta{"PYENV_VERSION": "build-3.11.4", "PYENV_SHELL": "bash"})
	want := []string{"HOME=/home/ci", "TERM=dumb", "PYENV_SHELL=bash", "PYENV_VERSION=build-3.11.4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply() = %v, want %v", got, want)
	}
}

func TestApply_ManagedPathPrepends(t *testing.T) {
	environ := []string{"PATH=" + join("/usr/bin", "/bin")}
	got := Apply(environ, delta.Delta{
		delta.ManagedPathKey: join("/home/ci/.pyenv/shims", "/home/ci/.pyenv/bin"),
	})
	want := []string{"PATH=" + join("/home/ci/.pyenv/shims", "/home/ci/.pyenv/bin", "/usr/bin", "/bin")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply() = %v, want %v", got, want)
	}
}

func TestApply_FullDeltaDoesNotDuplicate(t *testing.T) {
	full := join("/home/ci/.pyenv/shims", "/usr/bin")
	got := Apply([]string{"PATH=/usr/bin"}, delta.Delta{
		delta.PathKey:        full,
		delta.ManagedPathKey: "/home/ci/.pyenv/shims",
	})
	want := []string{"PATH=" + full}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply() = %v, want %v", got, want)
	}
}

func TestApply_ManagedPathWithoutBase(t *testing.T) {
	got := Apply(nil, delta.Delta{delta.ManagedPathKey: "/home/ci/.pyenv/shims"})
	want := []string{"PATH=/home/ci/.pyenv/shims"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply() = %v, want %v", got, want)
	}
}

func TestApply_EmptyDelta(t *testing.T) {
	environ := []string{"B=2", "A=1"}
	if got := Apply(environ, nil); !reflect.DeepEqual(got, environ) {
		t.Errorf("Apply() = %v, want %v", got, environ)
	}
}

func TestPrepend(t *testing.T) {
	tests := []struct {
		list, extra, want string
	}{
		{join("/usr/bin"), join("/a", "/b"), join("/a", "/b", "/usr/bin")},
		{join("/a", "/usr/bin"), join("/a", "/b"), join("/b", "/a", "/usr/bin")},
		{"", "/a", "/a"},
		{"/usr/bin", "", "/usr/bin"},
		{"/usr/bin", join("/a", "/a"), join("/a", "/usr/bin")},
	}
	for _, tt := range tests {
		if got := Prepend(tt.list, tt.extra); got != tt.want {
			t.Errorf("Prepend(%q, %q) = %q, want %q", tt.list, tt.extra, got, tt.want)
		}
	}
}

func TestLookup(t *testing.T) {
	environ := []string{"PATH=/bin", "HOME=/root", "PATH=/usr/bin"}
	if v, ok := Lookup(environ, "PATH"); !ok || v != "/usr/bin" {
		t.Errorf("Lookup(PATH) = %q, %v", v, ok)
	}
	if _, ok := Lookup(environ, "MISSING"); ok {
		t.Error("Lookup(MISSING) found a value")
	}
}

// Every plain delta entry is visible in the result, and variables the delta
// does not touch are preserved.
func TestApply_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("delta applied and rest preserved", prop.ForAll(
		func(environ []string, d map[string]string) bool {
			result := Apply(environ, delta.Delta(d))
			for k, v := range d {
				if got, ok := Lookup(result, k); !ok || got != v {
					return false
				}
			}
			for _, env := range environ {
				k, _, _ := strings.Cut(env, "=")
				if _, touched := d[k]; touched {
					continue
				}
				want, _ := Lookup(environ, k)
				if got, ok := Lookup(result, k); !ok || got != want {
					return false
				}
			}
			seen := make(map[string]bool)
			for _, env := range result {
				k, _, _ := strings.Cut(env, "=")
				if seen[k] {
					return false
				}
				seen[k] = true
			}
			return true
		},
		genEnviron(),
		gen.MapOf(gen.Identifier(), gen.AlphaString()),
	))

	properties.TestingRun(t)
}
