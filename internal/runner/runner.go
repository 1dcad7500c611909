// Package runner executes the external processes a build drives: compilers,
// archivers, git, configure and make.
package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"

	"github.com/qiniu/x/log"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/diag"
)

// Cmd describes one external process invocation.
type Cmd struct {
	Step string            // build step reported in diagnostics
	Path string            // program name or path
	Args []string          // arguments, not including Path
	Dir  string            // working directory, empty for the current one
	Env  map[string]string // overrides on top of the process environment
}

// String returns the command line as it would be typed in a shell.
func (c *Cmd) String() string {
	if len(c.Args) == 0 {
		return c.Path
	}
	return c.Path + " " + strings.Join(c.Args, " ")
}

// Runner runs external commands and blocks until they finish.
// A non-nil error is always a *diag.ProcessError.
type Runner interface {
	Run(ctx context.Context, cmd *Cmd) error
}

// Exec runs commands with os/exec, streaming their output.
type Exec struct {
	Stdout io.Writer
	Stderr io.Writer
}

// New returns an Exec runner writing sub-process output to stderr, so that
// compiler diagnostics do not mix with emitted link directives on stdout.
func New() *Exec {
	return &Exec{Stdout: os.Stderr, Stderr: os.Stderr}
}

func (r *Exec) Run(ctx context.Context, c *Cmd) error {
	log.Debugf("running: %s (dir=%q)", c, c.Dir)
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if len(c.Env) > 0 {
		cmd.Env = MergeEnv(os.Environ(), c.Env)
	}
	return Classify(c, cmd.Run())
}

// Classify converts the result of an exec.Cmd run into a *diag.ProcessError.
func Classify(c *Cmd, err error) error {
	if err == nil {
		return nil
	}
	perr := &diag.ProcessError{Step: c.Step, Cmd: c.String(), Code: -1}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		perr.Err = err
		return perr
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		perr.Signal = ws.Signal().String()
		return perr
	}
	perr.Code = exitErr.ExitCode()
	return perr
}

// MergeEnv overlays override on base and returns a sorted KEY=VALUE list.
func MergeEnv(base []string, override map[string]string) []string {
	envMap := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range override {
		envMap[k] = v
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}
