package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/diag"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/features"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/link"
)

func env(kv map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := kv[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	root := t.TempDir()
	c, err := Load(env(map[string]string{
		"ROCKSYS_ROOT": root,
		"TARGET":       "x86_64-unknown-linux-gnu",
		"HOST":         "aarch64-apple-darwin",
	}), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Root != root {
		t.Errorf("Root = %q, want %q", c.Root, root)
	}
	if want := filepath.Join(root, "target", "rocksys"); c.OutDir != want {
		t.Errorf("OutDir = %q, want %q", c.OutDir, want)
	}
	if want := filepath.Join(root, "rocksdb", "include"); c.IncludeDir != want {
		t.Errorf("IncludeDir = %q, want %q", c.IncludeDir, want)
	}
	if c.CXXStd != "-std=c++17" {
		t.Errorf("CXXStd = %q", c.CXXStd)
	}
	if c.Jobs < 1 {
		t.Errorf("Jobs = %d", c.Jobs)
	}
	if !c.Features.Enabled(features.Snappy) || len(c.Features.Names()) != 1 {
		t.Errorf("Features = %s, want snappy", c.Features)
	}
	// Cross builds do not inherit host CPU features.
	if len(c.CPU) != 0 {
		t.Errorf("CPU = %v, want none for a cross build", c.CPU)
	}
	if len(c.Libraries) != 0 {
		t.Errorf("Libraries = %v", c.Libraries)
	}
	if c.ConfigFile != "" {
		t.Errorf("ConfigFile = %q, want none", c.ConfigFile)
	}
}

func TestLoadEnvironment(t *testing.T) {
	root := t.TempDir()
	c, err := Load(env(map[string]string{
		"ROCKSYS_ROOT":        root,
		"TARGET":              "x86_64-unknown-linux-gnu",
		"TARGET_FEATURE":      "sse2,avx2",
		"NUM_JOBS":            "3",
		"OUT_DIR":             "/tmp/out",
		"ROCKSYS_FEATURES":    "lz4,spdk",
		"ROCKSDB_CXX_STD":     "c++20",
		"ROCKSDB_INCLUDE_DIR": "/usr/include",
		"DEP_LZ4_INCLUDE":     "/lz4/include",
		"DEP_Z_INCLUDE":       "/z/include",
		"ROCKSDB_LIB_DIR":     "/opt/rocksdb/lib",
		"ROCKSDB_STATIC":      "",
		"SNAPPY_COMPILE":      "true",
		"CXX":                 "clang++",
		"ROCKSDB_GIT_SHA":     "abc123",
	}), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(features.CPUFeatures{"sse2": true, "avx2": true}, c.CPU); diff != "" {
		t.Errorf("CPU (-want +got):\n%s", diff)
	}
	if c.Jobs != 3 || c.OutDir != "/tmp/out" || c.CXXStd != "-std=c++20" || c.IncludeDir != "/usr/include" {
		t.Errorf("config = %+v", c)
	}
	if diff := cmp.Diff([]features.Name{features.LZ4, features.SPDK}, c.Features.Names()); diff != "" {
		t.Errorf("features (-want +got):\n%s", diff)
	}
	if c.Deps != (features.DepIncludes{LZ4: "/lz4/include", Zlib: "/z/include"}) {
		t.Errorf("Deps = %+v", c.Deps)
	}
	want := map[string]link.Override{
		"ROCKSDB": {LibDir: "/opt/rocksdb/lib", Static: true},
		"SNAPPY":  {Compile: "true"},
	}
	if diff := cmp.Diff(want, c.Libraries); diff != "" {
		t.Errorf("libraries (-want +got):\n%s", diff)
	}
	if c.Override("rocksdb").LibDir != "/opt/rocksdb/lib" {
		t.Error("Override should be case-insensitive")
	}
	if c.CXX != "clang++" || c.GitSHA != "abc123" || c.AR != "" {
		t.Errorf("toolchain = %q %q %q", c.CXX, c.AR, c.GitSHA)
	}
}

func TestLoadFileLayering(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `
target          = "aarch64-unknown-linux-gnu"
target_features = ["neon"]
jobs            = 2
features        = ["zstd", "rtti"]
cxx_std         = "c++14"
out_dir         = "build/out"

library "rocksdb" {
  lib_dir = env.ROCKSDB_PREFIX
  static  = true
}

library "snappy" {
  compile = "1"
}
`)
	c, err := Load(env(map[string]string{
		"ROCKSYS_ROOT":   root,
		"ROCKSDB_PREFIX": "/prefix/lib",
		"NUM_JOBS":       "5",
	}), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ConfigFile != filepath.Join(root, FileName) {
		t.Errorf("ConfigFile = %q", c.ConfigFile)
	}
	if c.Target.String() != "aarch64-unknown-linux-gnu" {
		t.Errorf("Target = %s", c.Target)
	}
	if !c.CPU["neon"] {
		t.Errorf("CPU = %v", c.CPU)
	}
	// The environment wins over the file.
	if c.Jobs != 5 {
		t.Errorf("Jobs = %d, want 5", c.Jobs)
	}
	if c.OutDir != filepath.Join(root, "build", "out") {
		t.Errorf("OutDir = %q", c.OutDir)
	}
	if c.CXXStd != "-std=c++14" {
		t.Errorf("CXXStd = %q", c.CXXStd)
	}
	if diff := cmp.Diff([]features.Name{features.RTTI, features.Zstd}, c.Features.Names()); diff != "" {
		t.Errorf("features (-want +got):\n%s", diff)
	}
	want := map[string]link.Override{
		"ROCKSDB": {LibDir: "/prefix/lib", Static: true},
		"SNAPPY":  {Compile: "1"},
	}
	if diff := cmp.Diff(want, c.Libraries); diff != "" {
		t.Errorf("libraries (-want +got):\n%s", diff)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(t.TempDir(), "custom.hcl")
	if err := os.WriteFile(path, []byte(`features = []`), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(env(map[string]string{"ROCKSYS_ROOT": root, "ROCKSYS_CONFIG": path}), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", c.ConfigFile, path)
	}
	if len(c.Features.Names()) != 0 {
		t.Errorf("Features = %s, want none", c.Features)
	}

	_, err = Load(env(map[string]string{"ROCKSYS_ROOT": root}), filepath.Join(root, "missing.hcl"))
	if !errors.Is(err, diag.ErrConfig) {
		t.Errorf("missing explicit file: err = %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "jobs not a number", env: map[string]string{"NUM_JOBS": "many"}},
		{name: "zero jobs", env: map[string]string{"NUM_JOBS": "0"}},
		{name: "negative jobs in file", file: `jobs = -1`},
		{name: "unknown feature", env: map[string]string{"ROCKSYS_FEATURES": "snappy,lzma"}},
		{name: "unknown attribute", file: `targets = "x"`},
		{name: "syntax error", file: `target = `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if tt.file != "" {
				writeConfig(t, root, tt.file)
			}
			vars := map[string]string{"ROCKSYS_ROOT": root}
			for k, v := range tt.env {
				vars[k] = v
			}
			_, err := Load(env(vars), "")
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if !errors.Is(err, diag.ErrConfig) {
				t.Errorf("error %v does not match diag.ErrConfig", err)
			}
			if diag.Step(err) != "config" {
				t.Errorf("Step = %q", diag.Step(err))
			}
		})
	}
}

func TestHostCPUFallback(t *testing.T) {
	root := t.TempDir()
	c, err := Load(env(map[string]string{
		"ROCKSYS_ROOT": root,
		"TARGET":       "x86_64-unknown-linux-gnu",
		"HOST":         "x86_64-unknown-linux-gnu",
	}), "")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(features.HostCPUFeatures(), c.CPU); diff != "" {
		t.Errorf("CPU (-want +got):\n%s", diff)
	}
}

func TestLibDirRelativeToRoot(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `
library "snappy" {
  lib_dir = "vendor/snappy"
}
`)
	c, err := Load(env(map[string]string{
		"ROCKSYS_ROOT":    root,
		"ROCKSDB_LIB_DIR": "vendor/rocksdb",
	}), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, want := c.Override("rocksdb").LibDir, filepath.Join(root, "vendor", "rocksdb"); got != want {
		t.Errorf("ROCKSDB_LIB_DIR resolved to %q, want %q", got, want)
	}
	if got, want := c.Override("snappy").LibDir, filepath.Join(root, "vendor", "snappy"); got != want {
		t.Errorf("lib_dir resolved to %q, want %q", got, want)
	}
}
