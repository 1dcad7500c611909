package bindgen

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/diag"
)

const rocksdbHeader = `#ifndef ROCKSDB_C_H
#define ROCKSDB_C_H

#ifdef _WIN32
#define ROCKSDB_LIBRARY_API __declspec(dllexport)
#else
#define ROCKSDB_LIBRARY_API
#endif

#include <stdint.h>
#include "rocksdb/version.h"

#ifdef __cplusplus
extern "C" {
#endif

typedef struct rocksdb_t rocksdb_t;
typedef struct rocksdb_options_t rocksdb_options_t;

enum {
  rocksdb_no_compression = 0,
  rocksdb_snappy_compression = 1
};

/* open */
extern ROCKSDB_LIBRARY_API rocksdb_t* rocksdb_open(
    const rocksdb_options_t* options, const char* name, char** errptr);
extern ROCKSDB_LIBRARY_API void rocksdb_close(rocksdb_t* db);
extern ROCKSDB_LIBRARY_API int rocksdb_printf(const char* fmt, ...);
extern ROCKSDB_LIBRARY_API void rocksdb_set_cb(rocksdb_options_t* opt, void (*cb)(void*, int), void* arg);

static inline int rocksdb_helper(int x) { return x + 1; }

#ifdef __cplusplus
}
#endif
#endif
`

const versionHeader = `#pragma once
#define ROCKSDB_MAJOR 9
#define ROCKSDB_MINOR 1
#define ROCKSDB_PATCH 2
#define ROCKSDB_VERSION_STRING "9.1.2"
`

const spdkHeader = `#include <stddef.h>
#define IPPORT_RESERVED 1024
#define FP_NAN 0
#define SPDK_NVME_MAX 16
#define SPDK_SHIFTED (1 << 4)
#define SPDK_CAST ((uint32_t)1)
#define SPDK_PACKED __attribute__((packed))

struct spdk_nvme_sgl_descriptor {
	uint64_t address;
	uint32_t length;
};

struct spdk_nvme_ctrlr_data {
	uint16_t vid;
} SPDK_PACKED;

struct spdk_wire_hdr {
	uint8_t type;
	uint32_t plen;
} SPDK_PACKED;

struct spdk_nvme_status {
	uint16_t p : 1;
	uint16_t sc : 8;
};

union spdk_nvme_cdw {
	uint32_t raw;
	struct { uint32_t a; } bits;
};

struct spdk_env_opts {
	const char *name;
	int shm_id;
};

typedef struct max_align_t { long long a; } max_align_t;

struct spdk_nvme_ctrlr;

const struct spdk_nvme_ctrlr_data *spdk_nvme_ctrlr_get_data(struct spdk_nvme_ctrlr *ctrlr);
int spdk_nvme_ctrlr_cmd(struct spdk_nvme_ctrlr *ctrlr, struct spdk_nvme_sgl_descriptor *sgl);
struct spdk_nvme_sgl_descriptor *spdk_nvme_sgl_first(struct spdk_nvme_ctrlr *ctrlr);
void spdk_nvme_copy(struct spdk_nvme_sgl_descriptor sgl);
void spdk_env_opts_init(struct spdk_env_opts *opts);
int spdk_read_status(struct spdk_nvme_status *st, int type);
`

func rocksdbTree(t *testing.T) (inc, header string) {
	t.Helper()
	inc = filepath.Join(t.TempDir(), "include")
	header = writeFile(t, filepath.Join(inc, "rocksdb", "c.h"), rocksdbHeader)
	writeFile(t, filepath.Join(inc, "rocksdb", "version.h"), versionHeader)
	return inc, header
}

func TestRenderRocksDB(t *testing.T) {
	inc, header := rocksdbTree(t)
	src, set, err := Render(Options{
		Headers:      []string{header},
		IncludePaths: []string{inc},
		Denylist:     Defaults(false),
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if diff := cmp.Diff([]string{"ROCKSDB_MAJOR", "ROCKSDB_MINOR", "ROCKSDB_PATCH", "Rocksdb_no_compression", "Rocksdb_snappy_compression"}, set.Constants); diff != "" {
		t.Errorf("constants (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Rocksdb_t", "Rocksdb_options_t"}, set.Types); diff != "" {
		t.Errorf("types (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Rocksdb_open", "Rocksdb_close", "Rocksdb_set_cb"}, set.Functions); diff != "" {
		t.Errorf("functions (-want +got):\n%s", diff)
	}
	if !slices.Contains(set.Omitted, "function rocksdb_printf: variadic") {
		t.Errorf("omitted = %v", set.Omitted)
	}

	out := string(src)
	for _, want := range []string{
		"// Code generated by rocksys bindgen. DO NOT EDIT.",
		"package librocksdb",
		"#cgo CFLAGS: -I" + filepath.ToSlash(inc),
		"#include \"" + filepath.ToSlash(header) + "\"",
		"import \"unsafe\"",
		"type Rocksdb_t = C.rocksdb_t",
		"= C.rocksdb_no_compression",
		"func Rocksdb_open(options *Rocksdb_options_t, name *C.char, errptr **C.char) *Rocksdb_t {\n\treturn C.rocksdb_open(options, name, errptr)\n}",
		"func Rocksdb_close(db *Rocksdb_t) {\n\tC.rocksdb_close(db)\n}",
		"func Rocksdb_set_cb(opt *Rocksdb_options_t, cb *[0]byte, arg unsafe.Pointer) {",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "rocksdb_helper") {
		t.Error("inline helper should not be bound")
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	inc, header := rocksdbTree(t)
	opts := Options{Headers: []string{header}, IncludePaths: []string{inc}, Denylist: Defaults(false)}
	a, _, err := Render(opts)
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := Render(opts)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("two renders of the same headers differ")
	}
}

func TestRenderSPDKDenylist(t *testing.T) {
	dir := t.TempDir()
	header := writeFile(t, filepath.Join(dir, "wrapper.h"), spdkHeader)
	src, set, err := Render(Options{Headers: []string{header}, Denylist: Defaults(true)})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if diff := cmp.Diff([]string{"SPDK_NVME_MAX", "SPDK_SHIFTED"}, set.Constants); diff != "" {
		t.Errorf("constants (-want +got):\n%s", diff)
	}
	wantTypes := []string{"Spdk_nvme_sgl_descriptor", "Spdk_wire_hdr", "Spdk_nvme_status", "Spdk_nvme_cdw", "Spdk_env_opts"}
	if diff := cmp.Diff(wantTypes, set.Types); diff != "" {
		t.Errorf("types (-want +got):\n%s", diff)
	}
	wantFuncs := []string{"Spdk_nvme_ctrlr_cmd", "Spdk_nvme_sgl_first", "Spdk_env_opts_init", "Spdk_read_status"}
	if diff := cmp.Diff(wantFuncs, set.Functions); diff != "" {
		t.Errorf("functions (-want +got):\n%s", diff)
	}
	for _, want := range []string{
		"macro IPPORT_RESERVED: denylisted",
		"macro FP_NAN: denylisted",
		"struct spdk_nvme_ctrlr_data: denylisted",
		"struct max_align_t: denylisted",
		"type max_align_t: denylisted",
		"function spdk_nvme_ctrlr_get_data: denylisted",
		"function spdk_nvme_copy: unsupported parameter type struct spdk_nvme_sgl_descriptor",
	} {
		if !slices.Contains(set.Omitted, want) {
			t.Errorf("omitted %v, missing %q", set.Omitted, want)
		}
	}

	out := string(src)
	for _, want := range []string{
		"type Spdk_nvme_sgl_descriptor struct{ _ [0]byte }",
		"type Spdk_wire_hdr struct{ _ [0]byte }",
		"type Spdk_nvme_cdw struct{ _ [0]byte }",
		"type Spdk_env_opts = C.struct_spdk_env_opts",
		"return C.spdk_nvme_ctrlr_cmd(ctrlr, (*C.struct_spdk_nvme_sgl_descriptor)(unsafe.Pointer(sgl)))",
		"return (*Spdk_nvme_sgl_descriptor)(unsafe.Pointer(C.spdk_nvme_sgl_first(ctrlr)))",
		"func Spdk_read_status(st *Spdk_nvme_status, type_ C.int) C.int {",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "IPPORT_") || strings.Contains(out, "Max_align_t") {
		t.Errorf("denylisted items leaked into output:\n%s", out)
	}
}

func TestGenerateWritesFile(t *testing.T) {
	inc, header := rocksdbTree(t)
	out := filepath.Join(t.TempDir(), "out")
	set, err := Generate(Options{Headers: []string{header}, IncludePaths: []string{inc}, OutDir: out, Package: "ffi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if set.Path != filepath.Join(out, FileName) {
		t.Errorf("Path = %q", set.Path)
	}
	data, err := os.ReadFile(set.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("package ffi\n")) {
		t.Errorf("generated file has wrong package:\n%s", data)
	}
}

func TestRenderMissingHeader(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "rocksdb", "c.h")
	_, _, err := Render(Options{Headers: []string{missing}})
	var berr *diag.BindingError
	if !errors.As(err, &berr) || berr.Header != missing {
		t.Fatalf("Render error = %v", err)
	}
	if !errors.Is(err, diag.ErrBinding) {
		t.Error("error should match diag.ErrBinding")
	}
}

func TestDefaults(t *testing.T) {
	plain := Defaults(false)
	if !plain.OmitsType("max_align_t") || plain.OmitsType("spdk_nvme_ctrlr_data") || plain.OmitsMacro("FP_NAN") {
		t.Errorf("plain denylist = %s", plain)
	}

	d := Defaults(true)
	for _, name := range append(slices.Clone(PackedTypes), "max_align_t") {
		if !d.OmitsType(name) {
			t.Errorf("%s should be omitted", name)
		}
	}
	if !d.IsOpaque("spdk_nvme_sgl_descriptor") || d.IsOpaque("spdk_nvme_sgl_descriptor_t") {
		t.Error("opaque patterns must match whole names")
	}
	if !d.OmitsFunction("spdk_nvme_ctrlr_get_data") || d.OmitsFunction("spdk_nvme_ctrlr_get_data2") {
		t.Error("function denylist mismatch")
	}
	for _, m := range FloatClassMacros {
		if !d.OmitsMacro(m) {
			t.Errorf("macro %s should be dropped", m)
		}
	}
	if !d.OmitsType("IPPORT_ANY") || !d.OmitsFunction("IPPORT_x") || d.OmitsType("XIPPORT_A") {
		t.Error("item pattern mismatch")
	}
}
