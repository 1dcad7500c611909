package vcs

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/qiniu/x/log"
)

// Tree is a third-party source tree checked out as a git submodule.
type Tree struct {
	Dir       string // tree directory, relative to the root
	Marker    string // file whose presence proves the tree was fetched, relative to the root
	Recursive bool
}

// Synchronizer fetches submodule trees on demand.
type Synchronizer struct {
	VCS     VCS
	Root    string // directory trees are relative to
	RepoDir string // directory git runs in; Root when empty
}

// Present reports whether t's marker exists.
func (s *Synchronizer) Present(t Tree) bool {
	_, err := os.Stat(filepath.Join(s.Root, t.Marker))
	return err == nil
}

// Ensure fetches t when its marker is absent. It reports whether a fetch ran.
func (s *Synchronizer) Ensure(ctx context.Context, t Tree) (bool, error) {
	if s.Present(t) {
		return false, nil
	}
	dir := s.RepoDir
	if dir == "" {
		dir = s.Root
	}
	args := []string{"submodule", "update", "--init"}
	if t.Recursive {
		args = append(args, "--recursive")
	}
	log.Infof("running command: \"git %s\" in dir: %s", strings.Join(args, " "), dir)
	if err := s.VCS.SubmoduleUpdate(ctx, dir, t.Recursive); err != nil {
		return true, err
	}
	return true, nil
}
