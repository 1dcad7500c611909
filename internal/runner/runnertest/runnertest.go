// Package runnertest provides a fake runner.Runner for tests.
package runnertest

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/diag"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/runner"
)

// Recorder records every command it is asked to run. Hook, if set, decides the
// outcome of each command and may create files to simulate its output.
type Recorder struct {
	Hook func(c *runner.Cmd) error

	mu   sync.Mutex
	cmds []runner.Cmd
}

var _ runner.Runner = (*Recorder)(nil)

func (r *Recorder) Run(ctx context.Context, c *runner.Cmd) error {
	r.mu.Lock()
	cp := *c
	cp.Args = slices.Clone(c.Args)
	r.cmds = append(r.cmds, cp)
	hook := r.Hook
	r.mu.Unlock()
	if hook != nil {
		return hook(c)
	}
	return nil
}

// Cmds returns a copy of the recorded commands in call order.
func (r *Recorder) Cmds() []runner.Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.cmds)
}

// Lines returns the recorded command lines in call order.
func (r *Recorder) Lines() []string {
	cmds := r.Cmds()
	out := make([]string, len(cmds))
	for i := range cmds {
		out[i] = cmds[i].String()
	}
	return out
}

// Find returns the recorded commands whose command line contains substr.
func (r *Recorder) Find(substr string) []runner.Cmd {
	var out []runner.Cmd
	for _, c := range r.Cmds() {
		if strings.Contains(c.String(), substr) {
			out = append(out, c)
		}
	}
	return out
}

// ExitOn fails commands whose command line contains substr with exit status code.
func ExitOn(substr string, code int) func(*runner.Cmd) error {
	return func(c *runner.Cmd) error {
		if strings.Contains(c.String(), substr) {
			return &diag.ProcessError{Step: c.Step, Cmd: c.String(), Code: code}
		}
		return nil
	}
}

// SignalOn reports commands whose command line contains substr as killed by sig.
func SignalOn(substr, sig string) func(*runner.Cmd) error {
	return func(c *runner.Cmd) error {
		if strings.Contains(c.String(), substr) {
			return &diag.ProcessError{Step: c.Step, Cmd: c.String(), Code: -1, Signal: sig}
		}
		return nil
	}
}

// Chain runs hooks in order and returns the first error.
func Chain(hooks ...func(*runner.Cmd) error) func(*runner.Cmd) error {
	return func(c *runner.Cmd) error {
		for _, h := range hooks {
			if err := h(c); err != nil {
				return err
			}
		}
		return nil
	}
}
