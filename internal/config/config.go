// Package config loads the build configuration. It is the only package that
// reads the process environment; everything else receives a *Config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/qiniu/x/log"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/cc"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/diag"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/features"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/link"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/platform"
)

// FileName is the configuration file looked up in the root directory.
const FileName = "rocksys.hcl"

// Libraries that accept prebuilt overrides.
var Libraries = []string{"ROCKSDB", "SNAPPY"}

// DefaultFeatures is the feature set used when none is configured.
var DefaultFeatures = features.Set{features.Snappy: true}

// Lookup returns the value of an environment variable and whether it is set.
type Lookup func(key string) (string, bool)

// OS looks variables up in the process environment.
func OS() Lookup { return os.LookupEnv }

// Config is the resolved build configuration.
type Config struct {
	Root   string // repository dir holding rocksdb/, snappy/ and spdk/
	OutDir string

	Target platform.Triple
	Host   platform.Triple
	CPU    features.CPUFeatures
	Jobs   int

	Features   features.Set
	CXXStd     string // normalized, e.g. -std=c++17
	IncludeDir string // RocksDB public headers
	Deps       features.DepIncludes

	Libraries map[string]link.Override // keyed by upper case library name

	CXX    string
	AR     string
	CC     string
	GitSHA string

	ConfigFile string // HCL file that was applied, empty if none
}

// Override returns the prebuilt override of lib.
func (c *Config) Override(lib string) link.Override {
	return c.Libraries[strings.ToUpper(lib)]
}

// Load resolves the configuration: defaults, then the HCL file, then the
// environment. An empty file selects ROCKSYS_CONFIG or FileName in the root
// directory; a missing default file is not an error.
func Load(lookup Lookup, file string) (*Config, error) {
	if lookup == nil {
		lookup = OS()
	}
	get := func(key string) string {
		v, _ := lookup(key)
		return v
	}

	root := get("ROCKSYS_ROOT")
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	c := &Config{
		Root:      root,
		Host:      platform.HostTriple(),
		Jobs:      runtime.NumCPU(),
		Features:  clone(DefaultFeatures),
		CXXStd:    cc.DefaultStd,
		Libraries: map[string]link.Override{},
	}

	explicit := file != ""
	if !explicit {
		file = get("ROCKSYS_CONFIG")
		explicit = file != ""
	}
	if !explicit {
		file = filepath.Join(root, FileName)
	}
	var f *File
	if explicit || exists(file) {
		if f, err = LoadFile(file, lookup); err != nil {
			return nil, configError(err)
		}
		c.ConfigFile = file
	}
	if err = c.apply(f, lookup); err != nil {
		return nil, configError(err)
	}
	log.Debugf("config: target %s, host %s, features %s, jobs %d", c.Target, c.Host, c.Features, c.Jobs)
	return c, nil
}

func (c *Config) apply(f *File, lookup Lookup) error {
	if f == nil {
		f = &File{}
	}
	str := func(dst *string, file *string, key string) {
		if file != nil {
			*dst = *file
		}
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("HOST"); ok && v != "" {
		c.Host = platform.ParseTriple(v)
	}
	target := c.Host.String()
	str(&target, f.Target, "TARGET")
	c.Target = platform.ParseTriple(target)

	switch v, ok := lookup("TARGET_FEATURE"); {
	case ok:
		c.CPU = features.ParseCPU(v)
	case f.TargetFeatures != nil:
		c.CPU = features.ParseCPU(strings.Join(*f.TargetFeatures, ","))
	case c.Target.Arch == c.Host.Arch:
		c.CPU = features.HostCPUFeatures()
	default:
		c.CPU = features.CPUFeatures{}
	}

	if f.Jobs != nil {
		if *f.Jobs < 1 {
			return fmt.Errorf("jobs must be at least 1, got %d", *f.Jobs)
		}
		c.Jobs = *f.Jobs
	}
	if v, ok := lookup("NUM_JOBS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 1 {
			return fmt.Errorf("NUM_JOBS must be a positive integer, got %q", v)
		}
		c.Jobs = n
	}

	c.OutDir = filepath.Join(c.Root, "target", "rocksys")
	str(&c.OutDir, f.OutDir, "OUT_DIR")
	c.OutDir = c.abs(c.OutDir)

	if f.Features != nil {
		set, err := features.ParseSet(strings.Join(*f.Features, ","))
		if err != nil {
			return fmt.Errorf("features: %w", err)
		}
		c.Features = set
	}
	if v, ok := lookup("ROCKSYS_FEATURES"); ok {
		set, err := features.ParseSet(v)
		if err != nil {
			return fmt.Errorf("ROCKSYS_FEATURES: %w", err)
		}
		c.Features = set
	}

	std := ""
	str(&std, f.CXXStd, "ROCKSDB_CXX_STD")
	c.CXXStd = cc.NormalizeStd(std)

	c.IncludeDir = "rocksdb/include"
	str(&c.IncludeDir, f.RocksDBIncludeDir, "ROCKSDB_INCLUDE_DIR")
	c.IncludeDir = c.abs(c.IncludeDir)

	c.Deps = features.DepIncludes{
		LZ4:   lookupOr(lookup, "DEP_LZ4_INCLUDE"),
		Zstd:  lookupOr(lookup, "DEP_ZSTD_INCLUDE"),
		Zlib:  lookupOr(lookup, "DEP_Z_INCLUDE"),
		Bzip2: lookupOr(lookup, "DEP_BZIP2_INCLUDE"),
	}

	for _, lib := range f.Libraries {
		name := strings.ToUpper(lib.Name)
		o := c.Libraries[name]
		if lib.Compile != nil {
			o.Compile = *lib.Compile
		}
		if lib.LibDir != nil {
			o.LibDir = c.abs(*lib.LibDir)
		}
		if lib.Static != nil {
			o.Static = *lib.Static
		}
		c.Libraries[name] = o
	}
	for _, name := range Libraries {
		o := c.Libraries[name]
		if v, ok := lookup(name + "_COMPILE"); ok {
			o.Compile = v
		}
		if v, ok := lookup(name + "_LIB_DIR"); ok {
			o.LibDir = c.abs(v)
		}
		// Any value, even empty, selects static linking.
		if _, ok := lookup(name + "_STATIC"); ok {
			o.Static = true
		}
		if o != (link.Override{}) {
			c.Libraries[name] = o
		}
	}

	c.CXX = lookupOr(lookup, "CXX")
	c.AR = lookupOr(lookup, "AR")
	c.CC = lookupOr(lookup, "CC")
	c.GitSHA = lookupOr(lookup, "ROCKSDB_GIT_SHA")
	return nil
}

// abs resolves p against the root directory.
func (c *Config) abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// Path joins elem onto the root directory.
func (c *Config) Path(elem ...string) string {
	return filepath.Join(append([]string{c.Root}, elem...)...)
}

func lookupOr(lookup Lookup, key string) string {
	v, _ := lookup(key)
	return v
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func clone(s features.Set) features.Set {
	out := make(features.Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

type errConfig struct{ error }

func (e errConfig) Unwrap() []error { return []error{diag.ErrConfig, e.error} }

func configError(err error) error { return errConfig{err} }
