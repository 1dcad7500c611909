package build

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/qiniu/x/log"
	"golang.org/x/mod/semver"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/bindgen"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/diag"
)

// MinVersion is the oldest RocksDB release the source lists are known to
// match. Older trees still build, with a warning.
const MinVersion = "v6.20.0"

// Version is a RocksDB release as declared by rocksdb/version.h.
type Version struct {
	Major, Minor, Patch int64
}

func (v Version) String() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ReadVersion reads ROCKSDB_MAJOR, ROCKSDB_MINOR and ROCKSDB_PATCH from the
// version header under includeDir.
func ReadVersion(includeDir string) (Version, error) {
	header := filepath.Join(includeDir, "rocksdb", "version.h")
	if _, err := os.Stat(header); err != nil {
		return Version{}, &diag.MissingDependencyError{Dir: filepath.Dir(header), Err: err}
	}
	consts, err := bindgen.ReadConstants(header, []string{includeDir})
	if err != nil {
		return Version{}, err
	}
	var v Version
	for name, dst := range map[string]*int64{
		"ROCKSDB_MAJOR": &v.Major,
		"ROCKSDB_MINOR": &v.Minor,
		"ROCKSDB_PATCH": &v.Patch,
	} {
		n, ok := consts[name]
		if !ok {
			return Version{}, fmt.Errorf("%s does not define %s", header, name)
		}
		*dst = n
	}
	if !semver.IsValid(v.String()) {
		return Version{}, fmt.Errorf("%s declares invalid version %s", header, v)
	}
	if semver.Compare(v.String(), MinVersion) < 0 {
		log.Warnf("RocksDB %s is older than %s, the bundled source lists may not match", v, MinVersion)
	}
	return v, nil
}

// Properties that are unknown are rendered as "@", which RocksDB skips when
// it loads its build properties.
var buildVersionTmpl = template.Must(template.New(BuildVersionFile).Parse(`// Code generated by rocksys. DO NOT EDIT.

#include <memory>

#include "rocksdb/version.h"
#include "rocksdb/utilities/object_registry.h"
#include "util/string_util.h"

static const std::string rocksdb_build_git_sha = "rocksdb_build_git_sha:{{or .GitSHA "@"}}";
static const std::string rocksdb_build_git_tag = "rocksdb_build_git_tag:{{.Tag}}";
static const std::string rocksdb_build_date = "rocksdb_build_date:@";

std::unordered_map<std::string, ROCKSDB_NAMESPACE::RegistrarFunc>
    ROCKSDB_NAMESPACE::ObjectRegistry::builtins_ = {};

namespace ROCKSDB_NAMESPACE {
static void AddProperty(std::unordered_map<std::string, std::string>* props,
                        const std::string& name) {
  size_t colon = name.find(":");
  if (colon != std::string::npos && colon > 0 && colon < name.length() - 1) {
    size_t at = name.find("@", colon);
    if (at != colon + 1) {
      (*props)[name.substr(0, colon)] = name.substr(colon + 1);
    }
  }
}

static std::unordered_map<std::string, std::string>* LoadPropertiesSet() {
  auto* properties = new std::unordered_map<std::string, std::string>();
  AddProperty(properties, rocksdb_build_git_sha);
  AddProperty(properties, rocksdb_build_git_tag);
  AddProperty(properties, rocksdb_build_date);
  return properties;
}

const std::unordered_map<std::string, std::string>& GetRocksBuildProperties() {
  static std::unique_ptr<std::unordered_map<std::string, std::string>> props(
      LoadPropertiesSet());
  return *props;
}

std::string GetRocksVersionAsString(bool with_patch) {
  std::string version = std::to_string(ROCKSDB_MAJOR) + "." +
                        std::to_string(ROCKSDB_MINOR);
  if (with_patch) {
    return version + "." + std::to_string(ROCKSDB_PATCH);
  }
  return version;
}

std::string GetRocksBuildInfoAsString(const std::string& program,
                                      bool verbose) {
  std::string info = program + " (RocksDB) " + GetRocksVersionAsString(true);
  if (verbose) {
    for (const auto& it : GetRocksBuildProperties()) {
      info.append("\n    ");
      info.append(it.first);
      info.append(": ");
      info.append(it.second);
    }
  }
  return info;
}
}  // namespace ROCKSDB_NAMESPACE
`))

// RenderBuildVersion renders build_version.cc for v.
func RenderBuildVersion(v Version, gitSHA string) ([]byte, error) {
	var b bytes.Buffer
	err := buildVersionTmpl.Execute(&b, struct {
		GitSHA string
		Tag    string
	}{gitSHA, v.String()})
	return b.Bytes(), err
}

// WriteBuildVersion renders build_version.cc into dir and returns its path.
// An up to date file is left untouched so its mtime stays stable.
func WriteBuildVersion(dir string, v Version, gitSHA string) (string, error) {
	src, err := RenderBuildVersion(v, gitSHA)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, BuildVersionFile)
	if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, src) {
		return path, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, src, 0o644)
}
