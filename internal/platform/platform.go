// Package platform maps a target triple to its OS family and the
// platform-conditional parts of the RocksDB build.
package platform

import (
	"slices"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/cc"
)

// Family is the OS family a triple resolves to.
type Family int

const (
	POSIX Family = iota // generic fallback for unrecognized targets
	Windows
	MacOS
	IOS
	Android
	Linux
	FreeBSD
)

var familyNames = [...]string{
	POSIX:   "posix",
	Windows: "windows",
	MacOS:   "macos",
	IOS:     "ios",
	Android: "android",
	Linux:   "linux",
	FreeBSD: "freebsd",
}

func (f Family) String() string {
	if int(f) < len(familyNames) {
		return familyNames[f]
	}
	return "unknown"
}

// Platform is the platform-dependent part of the build for one triple.
type Platform struct {
	Triple    Triple
	Family    Family
	Defines   []cc.Define
	Excluded  []string          // base sources removed for this platform
	Added     []string          // sources added for this platform
	Libs      []string          // OS libraries, always linked dynamically
	Env       map[string]string // environment applied to compiler processes
	BigEndian bool
	MSVC      bool
}

// POSIX-only sources replaced on Windows.
var posixSources = []string{
	"port/port_posix.cc",
	"env/env_posix.cc",
	"env/fs_posix.cc",
	"env/io_posix.cc",
}

var windowsSources = []string{
	"port/win/env_default.cc",
	"port/win/port_win.cc",
	"port/win/xpress_win.cc",
	"port/win/io_win.cc",
	"port/win/win_thread.cc",
	"port/win/env_win.cc",
	"port/win/win_logger.cc",
}

var posixDefines = []cc.Define{
	cc.Def("ROCKSDB_PLATFORM_POSIX"),
	cc.Def("ROCKSDB_LIB_IO_POSIX"),
}

// FamilyOf returns the OS family of t. Checks are ordered: an apple-ios
// triple is iOS even though it is also Apple.
func FamilyOf(t Triple) Family {
	switch {
	case t.Contains("apple-ios"):
		return IOS
	case t.Contains("darwin"):
		return MacOS
	case t.Contains("android"):
		return Android
	case t.Contains("linux"):
		return Linux
	case t.Contains("freebsd"):
		return FreeBSD
	case t.Contains("windows"):
		return Windows
	}
	return POSIX
}

// Resolve computes the platform adjustments for t. It performs no I/O.
func Resolve(t Triple) Platform {
	p := Platform{
		Triple:    t,
		Family:    FamilyOf(t),
		BigEndian: t.BigEndian(),
		MSVC:      t.IsMSVC(),
	}
	switch p.Family {
	case IOS:
		p.Defines = []cc.Define{
			cc.Def("OS_MACOSX"),
			cc.Def("IOS_CROSS_COMPILE"),
			cc.Def("PLATFORM", "IOS"),
			cc.Def("NIOSTATS_CONTEXT"),
			cc.Def("NPERF_CONTEXT"),
		}
		p.Defines = append(p.Defines, posixDefines...)
		p.Env = map[string]string{"IPHONEOS_DEPLOYMENT_TARGET": "11.0"}
	case MacOS:
		p.Defines = append([]cc.Define{cc.Def("OS_MACOSX")}, posixDefines...)
	case Android:
		p.Defines = append([]cc.Define{cc.Def("OS_ANDROID")}, posixDefines...)
	case Linux:
		p.Defines = append([]cc.Define{cc.Def("OS_LINUX")}, posixDefines...)
	case FreeBSD:
		p.Defines = append([]cc.Define{cc.Def("OS_FREEBSD")}, posixDefines...)
	case Windows:
		p.Libs = []string{"rpcrt4", "shlwapi"}
		p.Defines = []cc.Define{
			cc.Def("DWIN32"),
			cc.Def("OS_WIN"),
			cc.Def("_MBCS"),
			cc.Def("WIN64"),
			cc.Def("NOMINMAX"),
			cc.Def("ROCKSDB_WINDOWS_UTF8_FILENAMES"),
		}
		if t.String() == "x86_64-pc-windows-gnu" {
			// MinGW: localtime_r wrapper over localtime_s, and Vista headers.
			p.Defines = append(p.Defines,
				cc.Def("_POSIX_C_SOURCE", "1"),
				cc.Def("_WIN32_WINNT", "_WIN32_WINNT_VISTA"),
			)
		}
		p.Excluded = slices.Clone(posixSources)
		p.Added = slices.Clone(windowsSources)
	default:
		p.Defines = slices.Clone(posixDefines)
	}
	return p
}

// WindowsSources returns the Windows-native replacements of the POSIX port layer.
func WindowsSources() []string { return slices.Clone(windowsSources) }

// POSIXSources returns the POSIX port layer sources excluded on Windows.
func POSIXSources() []string { return slices.Clone(posixSources) }

// CompilerMacros returns the macros a C compiler predefines for t that the
// RocksDB and SPDK headers test for.
func CompilerMacros(t Triple) []cc.Define {
	var out []cc.Define
	switch FamilyOf(t) {
	case Windows:
		out = append(out, cc.Def("_WIN32", "1"))
		if t.IsX86_64() || t.Arch == "aarch64" {
			out = append(out, cc.Def("_WIN64", "1"))
		}
		if t.IsMSVC() {
			out = append(out, cc.Def("_MSC_VER", "1930"))
		}
	case MacOS, IOS:
		out = append(out, cc.Def("__APPLE__", "1"), cc.Def("__MACH__", "1"))
	case Android:
		out = append(out, cc.Def("__linux__", "1"), cc.Def("__ANDROID__", "1"), cc.Def("__unix__", "1"))
	case Linux:
		out = append(out, cc.Def("__linux__", "1"), cc.Def("__unix__", "1"))
	case FreeBSD:
		out = append(out, cc.Def("__FreeBSD__", "1"), cc.Def("__unix__", "1"))
	default:
		out = append(out, cc.Def("__unix__", "1"))
	}
	switch t.Arch {
	case "x86_64":
		out = append(out, cc.Def("__x86_64__", "1"))
	case "aarch64":
		out = append(out, cc.Def("__aarch64__", "1"))
	}
	if t.BigEndian() {
		out = append(out, cc.Def("__BIG_ENDIAN__", "1"))
	}
	return out
}
