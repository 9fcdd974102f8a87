//go:build windows
// +build windows

package runner

import "os/exec"

// setProcessGroup keeps the default cancellation, which kills only the
// direct child.
func setProcessGroup(cmd *exec.Cmd) {}
