// Package diag defines the fatal error kinds a build can end with.
//
// Every error returned by the build pipeline either is, or wraps, one of
// MissingDependencyError, ProcessError or BindingError. None of them is
// retried: the caller is expected to print the error and exit non-zero.
package diag

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingDependency = errors.New("missing dependency")
	ErrProcess           = errors.New("external process failed")
	ErrBinding           = errors.New("binding generation failed")
	ErrConfig            = errors.New("invalid configuration")
)

// DefaultFetchHint is appended to missing source tree errors.
const DefaultFetchHint = "git submodule update --init --recursive"

// MissingDependencyError reports a source tree that is absent or empty.
type MissingDependencyError struct {
	Dir  string
	Hint string
	Err  error
}

func (e *MissingDependencyError) Error() string {
	var b strings.Builder
	if e.Err != nil {
		fmt.Fprintf(&b, "the `%s` directory is missing: %v", e.Dir, e.Err)
	} else {
		fmt.Fprintf(&b, "the `%s` directory is empty, did you forget to pull the submodules?", e.Dir)
	}
	hint := e.Hint
	if hint == "" {
		hint = DefaultFetchHint
	}
	fmt.Fprintf(&b, "; try `%s`", hint)
	return b.String()
}

func (e *MissingDependencyError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMissingDependency, e.Err}
	}
	return []error{ErrMissingDependency}
}

// ProcessError reports an external command that could not be started, exited
// with a non-zero status or was killed by a signal.
type ProcessError struct {
	Step   string
	Cmd    string
	Code   int    // exit status, -1 when not applicable
	Signal string // non-empty when the process was terminated by a signal
	Err    error  // start failure, nil otherwise
}

func (e *ProcessError) Error() string {
	switch {
	case e.Signal != "":
		return fmt.Sprintf("%s: command %q was terminated by signal %s", e.Step, e.Cmd, e.Signal)
	case e.Err != nil:
		return fmt.Sprintf("%s: command %q could not be started: %v", e.Step, e.Cmd, e.Err)
	default:
		return fmt.Sprintf("%s: command %q failed with exit status %d", e.Step, e.Cmd, e.Code)
	}
}

func (e *ProcessError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrProcess, e.Err}
	}
	return []error{ErrProcess}
}

// Signaled reports whether the process was terminated by a signal.
func (e *ProcessError) Signaled() bool {
	return e.Signal != ""
}

// BindingError reports a header that could not be read, parsed or emitted.
type BindingError struct {
	Header string
	Err    error
}

func (e *BindingError) Error() string {
	if e.Header == "" {
		return fmt.Sprintf("unable to generate bindings: %v", e.Err)
	}
	return fmt.Sprintf("unable to generate bindings from %s: %v", e.Header, e.Err)
}

func (e *BindingError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrBinding, e.Err}
	}
	return []error{ErrBinding}
}

// Step names the failing step of err for diagnostics.
func Step(err error) string {
	var perr *ProcessError
	if errors.As(err, &perr) && perr.Step != "" {
		return perr.Step
	}
	switch {
	case errors.Is(err, ErrMissingDependency):
		return "missing dependency"
	case errors.Is(err, ErrBinding):
		return "bindgen"
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrProcess):
		return "process"
	}
	return "build"
}
