// Package launcher replaces the current process with a target command.
package launcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

// Exec replaces the current process with target. The executable is looked up
// in the PATH of environ, not of the current process, so that a PATH set by
// an applied delta takes effect. It does not return on success.
//
// Error handling:
//   - Command not found: IsNotFound reports true (caller should exit 127)
//   - Permission denied: IsPermissionDenied reports true (caller should exit 126)
//   - Other execve failures: returned as is (caller should exit 1)
func Exec(target string, args, environ []string) error {
	execPath, err := LookPath(target, pathOf(environ))
	if err != nil {
		return err
	}

	argv := append([]string{target}, args...)
	return syscall.Exec(execPath, argv, environ)
}

// LookPath resolves file against the directories in path. Names containing
// a separator are checked as given.
func LookPath(file, path string) (string, error) {
	if strings.ContainsRune(file, filepath.Separator) {
		if err := executable(file); err != nil {
			return "", &exec.Error{Name: file, Err: err}
		}
		return file, nil
	}

	var denied error
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		err := executable(candidate)
		if err == nil {
			return candidate, nil
		}
		if errors.Is(err, fs.ErrPermission) && denied == nil {
			denied = &exec.Error{Name: file, Err: err}
		}
	}
	if denied != nil {
		return "", denied
	}
	return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
}

func executable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory: %w", path, fs.ErrPermission)
	}
	if info.Mode().Perm()&0111 == 0 {
		return fs.ErrPermission
	}
	return nil
}

func pathOf(environ []string) string {
	for i := len(environ) - 1; i >= 0; i-- {
		if v, ok := strings.CutPrefix(environ[i], "PATH="); ok {
			return v
		}
	}
	return ""
}

// IsNotFound checks if the error indicates the command was not found
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, exec.ErrNotFound)
}

// IsPermissionDenied checks if the error indicates permission was denied
func IsPermissionDenied(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, fs.ErrPermission)
}
