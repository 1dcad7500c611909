package build

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/cc"
)

// Output directory layout:
//
//	OUT_DIR/
//	  .cache.json        # build cache: maps archive name → buildEntry
//	  librocksdb.a
//	  libsnappy.a
//	  obj/<archive>/     # object files
//	  build_version.cc
//	  bindings.go
//	  link_flags.go
const cacheFile = ".cache.json"

// buildEntry records one successfully built archive.
type buildEntry struct {
	Fingerprint string    `json:"fingerprint"`
	Archive     string    `json:"archive"`
	BuildTime   time.Time `json:"build_time"`
}

// buildCache maps archive names to their last build.
type buildCache struct {
	Cache map[string]*buildEntry `json:"cache"`
}

func (c *buildCache) get(name string) (*buildEntry, bool) {
	entry, ok := c.Cache[name]
	return entry, ok
}

func (c *buildCache) set(name string, entry *buildEntry) {
	if c.Cache == nil {
		c.Cache = make(map[string]*buildEntry)
	}
	c.Cache[name] = entry
}

// fresh reports whether the cached archive of a is still valid for fp.
func (c *buildCache) fresh(name, fp string) (string, bool) {
	e, ok := c.get(name)
	if !ok || e.Fingerprint != fp {
		return "", false
	}
	if _, err := os.Stat(e.Archive); err != nil {
		return "", false
	}
	return e.Archive, true
}

// loadCache reads the cache file of an output directory.
func loadCache(dir string) (*buildCache, error) {
	data, err := os.ReadFile(filepath.Join(dir, cacheFile))
	if err != nil {
		return nil, err
	}
	var cache buildCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, err
	}
	return &cache, nil
}

// saveCache writes the cache file of an output directory.
func saveCache(dir string, cache *buildCache) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, cacheFile), data, 0o644)
}

// fingerprint hashes everything that affects the archive: the toolchain,
// the compiler configuration and each source file's size and mtime.
func fingerprint(tc cc.Toolchain, a *cc.Archive) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	enc.Encode(tc)
	enc.Encode(a.Name)
	enc.Encode(a.Config)
	for _, f := range a.Files {
		fi, err := os.Stat(f)
		if err != nil {
			fmt.Fprintf(h, "%s:-\n", f)
			continue
		}
		fmt.Fprintf(h, "%s:%d:%d\n", f, fi.Size(), fi.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}
