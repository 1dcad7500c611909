package build

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/cc"
)

func TestSaveAndLoadCache(t *testing.T) {
	tmpDir := t.TempDir()
	now := time.Now().Truncate(time.Second)
	cache := &buildCache{}
	cache.set("rocksdb", &buildEntry{Fingerprint: "abc", Archive: "/out/librocksdb.a", BuildTime: now})

	if err := saveCache(tmpDir, cache); err != nil {
		t.Fatalf("saveCache failed: %v", err)
	}
	loaded, err := loadCache(tmpDir)
	if err != nil {
		t.Fatalf("loadCache failed: %v", err)
	}
	entry, ok := loaded.get("rocksdb")
	if !ok {
		t.Fatal("entry missing after reload")
	}
	if entry.Archive != "/out/librocksdb.a" || entry.Fingerprint != "abc" {
		t.Errorf("entry = %+v", entry)
	}
	if !entry.BuildTime.Equal(now) {
		t.Errorf("BuildTime mismatch: got %v, want %v", entry.BuildTime, now)
	}
}

func TestLoadCache_NotExist(t *testing.T) {
	if _, err := loadCache(t.TempDir()); err == nil {
		t.Fatal("expected error for non-existent file, got nil")
	}
}

func TestLoadCache_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, cacheFile), []byte("invalid json"), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	if _, err := loadCache(tmpDir); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

func TestCacheFresh(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "libsnappy.a")
	cache := &buildCache{}
	cache.set("snappy", &buildEntry{Fingerprint: "fp", Archive: archive})

	if _, ok := cache.fresh("snappy", "fp"); ok {
		t.Error("fresh without the archive on disk")
	}
	write(t, archive, "!<arch>\n")
	if path, ok := cache.fresh("snappy", "fp"); !ok || path != archive {
		t.Errorf("fresh = %q, %v", path, ok)
	}
	if _, ok := cache.fresh("snappy", "other"); ok {
		t.Error("fresh with a different fingerprint")
	}
	if _, ok := cache.fresh("rocksdb", "fp"); ok {
		t.Error("fresh for an unknown archive")
	}
}

func TestFingerprintTracksSources(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.cc")
	write(t, src, "int a;\n")
	tc := cc.NewToolchain(false, false, "", "")
	a := &cc.Archive{Name: "x", Files: []string{src}}

	fp := fingerprint(tc, a)
	if fp != fingerprint(tc, a) {
		t.Fatal("fingerprint is not stable")
	}
	write(t, src, "int a; int b;\n")
	if fingerprint(tc, a) == fp {
		t.Error("editing a source did not change the fingerprint")
	}
	fp = fingerprint(tc, a)
	a.Config.Define(cc.Def("NDEBUG", "1"))
	if fingerprint(tc, a) == fp {
		t.Error("changing a define did not change the fingerprint")
	}
}
