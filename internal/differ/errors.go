package differ

import (
	"errors"
	"fmt"
)

// Kind classifies a failed computation.
type Kind int

const (
	// KindInstallation means the version manager could not be installed.
	KindInstallation Kind = iota + 1
	// KindLaunch means a capture shell could not be started or exited non-zero.
	KindLaunch
	// KindIO means a file could not be fetched, written or read.
	KindIO
)

var (
	ErrInstallation = errors.New("installation failure")
	ErrLaunch       = errors.New("subprocess launch failure")
	ErrIO           = errors.New("io failure")
)

func (k Kind) String() string {
	switch k {
	case KindInstallation:
		return "installation"
	case KindLaunch:
		return "launch"
	case KindIO:
		return "io"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindInstallation:
		return ErrInstallation
	case KindLaunch:
		return ErrLaunch
	case KindIO:
		return ErrIO
	}
	return nil
}

// Error is returned by Differ for every failure after the request was
// validated. Stage names the step that failed: install, baseline or
// activation.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind.sentinel())
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func IsInstallationFailure(err error) bool {
	return errors.Is(err, ErrInstallation)
}

func IsLaunchFailure(err error) bool {
	return errors.Is(err, ErrLaunch)
}

func IsIOFailure(err error) bool {
	return errors.Is(err, ErrIO)
}

func stageError(kind Kind, stage string, err error) error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}
