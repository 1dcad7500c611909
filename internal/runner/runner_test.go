package runner

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/diag"
)

func TestMergeEnv(t *testing.T) {
	base := []string{"A=1", "B=2", "C=3"}
	got := MergeEnv(base, map[string]string{"B": "X", "D": "4"})

	want := []string{"A=1", "B=X", "C=3", "D=4"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("MergeEnv = %v, want %v", got, want)
	}
}

func TestCmdString(t *testing.T) {
	c := &Cmd{Path: "make", Args: []string{"-j8"}}
	if got := c.String(); got != "make -j8" {
		t.Errorf("String = %q", got)
	}
	if got := (&Cmd{Path: "true"}).String(); got != "true" {
		t.Errorf("String = %q", got)
	}
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH")
	}
}

func TestExecExitStatus(t *testing.T) {
	requireShell(t)
	r := &Exec{}
	err := r.Run(context.Background(), &Cmd{Step: "make", Path: "sh", Args: []string{"-c", "exit 3"}})
	var perr *diag.ProcessError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProcessError, got %v", err)
	}
	if perr.Code != 3 || perr.Signaled() {
		t.Errorf("got code=%d signal=%q, want code 3", perr.Code, perr.Signal)
	}
	if !errors.Is(err, diag.ErrProcess) {
		t.Error("error should match diag.ErrProcess")
	}
	if !strings.Contains(err.Error(), "exit status 3") {
		t.Errorf("message %q should carry the exit status", err)
	}
}

func TestExecSignal(t *testing.T) {
	requireShell(t)
	r := &Exec{}
	err := r.Run(context.Background(), &Cmd{Step: "make", Path: "sh", Args: []string{"-c", "kill -9 $$"}})
	var perr *diag.ProcessError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProcessError, got %v", err)
	}
	if !perr.Signaled() {
		t.Fatalf("expected a signal, got code %d", perr.Code)
	}
	if !strings.Contains(err.Error(), "terminated by signal") {
		t.Errorf("message %q should mention the signal", err)
	}
}

func TestExecNotFound(t *testing.T) {
	r := &Exec{}
	err := r.Run(context.Background(), &Cmd{Step: "configure", Path: "rocksys-no-such-binary"})
	var perr *diag.ProcessError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProcessError, got %v", err)
	}
	if perr.Err == nil {
		t.Error("start failure should keep the underlying error")
	}
}

func TestExecEnvAndDir(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	var out strings.Builder
	r := &Exec{Stdout: &out}
	err := r.Run(context.Background(), &Cmd{
		Path: "sh",
		Args: []string{"-c", `printf "%s %s" "$ROCKSYS_TEST" "$(pwd)"`},
		Dir:  dir,
		Env:  map[string]string{"ROCKSYS_TEST": "on"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(out.String(), "on ") {
		t.Errorf("env override missing: %q", out.String())
	}
}
