package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/diag"
)

func TestErrorLine(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{
			&diag.ProcessError{Step: "make", Cmd: "make -j8", Code: -1, Signal: "killed"},
			`rocksys: make: make: command "make -j8" was terminated by signal killed`,
		},
		{
			fmt.Errorf("wrapped: %w", &diag.MissingDependencyError{Dir: "rocksdb"}),
			"rocksys: missing dependency: wrapped: the `rocksdb` directory is empty",
		},
		{
			&diag.BindingError{Header: "c.h", Err: fmt.Errorf("boom")},
			"rocksys: bindgen: unable to generate bindings from c.h: boom",
		},
	}
	for _, tt := range tests {
		if got := errorLine(tt.err); !strings.HasPrefix(got, tt.want) {
			t.Errorf("errorLine() = %q, want prefix %q", got, tt.want)
		}
	}
}

func setEnv(t *testing.T, root string) {
	t.Helper()
	t.Setenv("ROCKSYS_ROOT", root)
	t.Setenv("ROCKSYS_CONFIG", "")
	t.Setenv("TARGET", "x86_64-unknown-linux-gnu")
	t.Setenv("HOST", "x86_64-unknown-linux-gnu")
	t.Setenv("TARGET_FEATURE", "")
	t.Setenv("ROCKSYS_FEATURES", "snappy")
	t.Setenv("ROCKSDB_LIB_DIR", "/opt/rocksdb/lib")
	t.Setenv("OUT_DIR", filepath.Join(root, "out"))
	for _, k := range []string{"NUM_JOBS", "ROCKSDB_COMPILE", "ROCKSDB_STATIC", "SNAPPY_COMPILE", "SNAPPY_LIB_DIR", "SNAPPY_STATIC", "ROCKSDB_INCLUDE_DIR"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer func() {
		planJSON = false
		rootCmd.SetArgs(nil)
	}()
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPlanJSON(t *testing.T) {
	root := t.TempDir()
	setEnv(t, root)

	out, err := run(t, "plan", "--json")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	var p map[string]any
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("plan output is not JSON: %v\n%s", err, out)
	}
	if p["target"] != "x86_64-unknown-linux-gnu" {
		t.Errorf("target = %v", p["target"])
	}
	for _, want := range []string{`"prebuilt": true`, `"link-search=native=/opt/rocksdb/lib"`, `"name": "snappy"`} {
		if !strings.Contains(out, want) {
			t.Errorf("plan missing %s:\n%s", want, out)
		}
	}
}

func TestPlanText(t *testing.T) {
	root := t.TempDir()
	setEnv(t, root)

	out, err := run(t, "plan")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	for _, want := range []string{
		"target:   x86_64-unknown-linux-gnu (linux)",
		"features: snappy",
		"rocksdb: prebuilt",
		"  link-lib=dylib=rocksdb",
		"snappy: from source, 3 files",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("plan missing %q:\n%s", want, out)
		}
	}
}

func TestInvalidConfig(t *testing.T) {
	root := t.TempDir()
	setEnv(t, root)
	t.Setenv("NUM_JOBS", "zero")

	_, err := run(t, "plan")
	if err == nil {
		t.Fatal("plan succeeded with NUM_JOBS=zero")
	}
	if got := errorLine(err); !strings.HasPrefix(got, "rocksys: config: NUM_JOBS") {
		t.Errorf("errorLine = %q", got)
	}
}
