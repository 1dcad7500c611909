// Package sources assembles the ordered RocksDB source manifest.
package sources

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/diag"
)

//go:embed rocksdb_lib_sources.txt
var libSources string

//go:embed rocksdb_lib_sources_spdk.txt
var libSourcesSPDK string

// BuildVersion is RocksDB's own build_version.cc. It is never compiled: a
// generated build_version.cc from the output directory is used instead.
const BuildVersion = "util/build_version.cc"

// Manifest is an ordered, duplicate-free list of source paths relative to
// the RocksDB root.
type Manifest []string

// Base returns the embedded RocksDB library sources, with the SPDK variant
// selected when spdk is true.
func Base(spdk bool) []string {
	raw := libSources
	if spdk {
		raw = libSourcesSPDK
	}
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == BuildVersion {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Assemble computes (base ∪ added) − excluded, keeping the order in which
// each path is first seen.
func Assemble(base, added, excluded []string) Manifest {
	drop := make(map[string]bool, len(excluded))
	for _, f := range excluded {
		drop[f] = true
	}
	seen := make(map[string]bool, len(base)+len(added))
	out := make(Manifest, 0, len(base)+len(added))
	for _, list := range [][]string{base, added} {
		for _, f := range list {
			if drop[f] || seen[f] {
				continue
			}
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// Contains reports whether m lists f.
func (m Manifest) Contains(f string) bool {
	return slices.Contains(m, f)
}

// Paths joins every entry onto root.
func (m Manifest) Paths(root string) []string {
	out := make([]string, len(m))
	for i, f := range m {
		out[i] = filepath.Join(root, filepath.FromSlash(f))
	}
	return out
}

// CheckRoot fails when dir is missing or has no entries, which means the
// source tree was never fetched.
func CheckRoot(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &diag.MissingDependencyError{Dir: dir, Err: err}
	}
	if len(entries) == 0 {
		return &diag.MissingDependencyError{Dir: dir}
	}
	return nil
}

func (m Manifest) String() string {
	return fmt.Sprintf("%d sources", len(m))
}
