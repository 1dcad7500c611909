package vcs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/diag"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/runner/runnertest"
)

// mockVCS implements VCS for unit testing.
type mockVCS struct {
	calls []string
	err   error
	fill  func(dir string) // simulates the checkout
}

func (m *mockVCS) SubmoduleUpdate(ctx context.Context, dir string, recursive bool) error {
	call := dir
	if recursive {
		call += " --recursive"
	}
	m.calls = append(m.calls, call)
	if m.err != nil {
		return m.err
	}
	if m.fill != nil {
		m.fill(dir)
	}
	return nil
}

func TestGitVCS_SubmoduleUpdate(t *testing.T) {
	rec := &runnertest.Recorder{}
	g := NewGitVCS(rec, WithGitPath("/usr/bin/git"))

	if err := g.SubmoduleUpdate(context.Background(), "..", false); err != nil {
		t.Fatalf("SubmoduleUpdate: %v", err)
	}
	if err := g.SubmoduleUpdate(context.Background(), ".", true); err != nil {
		t.Fatalf("SubmoduleUpdate: %v", err)
	}
	cmds := rec.Cmds()
	if got := cmds[0].String(); got != "/usr/bin/git submodule update --init" || cmds[0].Dir != ".." {
		t.Errorf("first command = %q in %q", got, cmds[0].Dir)
	}
	if got := cmds[1].String(); got != "/usr/bin/git submodule update --init --recursive" {
		t.Errorf("second command = %q", got)
	}
}

func TestEnsureSkipsPresentTree(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "rocksdb"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "rocksdb", "AUTHORS"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	m := &mockVCS{}
	s := &Synchronizer{VCS: m, Root: root}

	fetched, err := s.Ensure(context.Background(), Tree{Dir: "rocksdb", Marker: "rocksdb/AUTHORS"})
	if err != nil || fetched {
		t.Fatalf("Ensure = %v, %v", fetched, err)
	}
	if len(m.calls) != 0 {
		t.Errorf("git ran for a present tree: %v", m.calls)
	}
}

func TestEnsureFetchesMissingTree(t *testing.T) {
	root := t.TempDir()
	m := &mockVCS{fill: func(string) {
		os.MkdirAll(filepath.Join(root, "spdk", ".git"), 0o755)
	}}
	s := &Synchronizer{VCS: m, Root: root, RepoDir: filepath.Dir(root)}

	tree := Tree{Dir: "spdk", Marker: "spdk/.git", Recursive: true}
	fetched, err := s.Ensure(context.Background(), tree)
	if err != nil || !fetched {
		t.Fatalf("Ensure = %v, %v", fetched, err)
	}
	if want := filepath.Dir(root) + " --recursive"; len(m.calls) != 1 || m.calls[0] != want {
		t.Errorf("calls = %v, want [%s]", m.calls, want)
	}
	if !s.Present(tree) {
		t.Error("tree should be present after fetch")
	}
}

func TestEnsurePropagatesFailure(t *testing.T) {
	want := &diag.ProcessError{Step: "submodule sync", Cmd: "git submodule update --init", Code: 128}
	s := &Synchronizer{VCS: &mockVCS{err: want}, Root: t.TempDir()}
	_, err := s.Ensure(context.Background(), Tree{Dir: "rocksdb", Marker: "rocksdb/AUTHORS"})
	if !errors.Is(err, diag.ErrProcess) {
		t.Fatalf("Ensure error = %v", err)
	}
}
