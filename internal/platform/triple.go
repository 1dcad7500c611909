package platform

import (
	"runtime"
	"slices"
	"strings"
)

// Triple is a target triple: arch-vendor-os[-abi].
type Triple struct {
	Arch   string
	Vendor string
	OS     string
	ABI    string

	raw string
}

var knownOS = []string{"linux", "windows", "darwin", "ios", "android", "freebsd", "openbsd", "netbsd", "none"}

// ParseTriple splits s into its components. It never fails: short or unusual
// triples are kept as-is and resolve to the generic POSIX family.
func ParseTriple(s string) Triple {
	s = strings.TrimSpace(s)
	t := Triple{raw: s}
	parts := strings.Split(s, "-")
	t.Arch = parts[0]
	switch len(parts) {
	case 1:
	case 2:
		t.OS = parts[1]
	case 3:
		// arch-os-abi, e.g. aarch64-linux-android
		if slices.Contains(knownOS, parts[1]) {
			t.OS, t.ABI = parts[1], parts[2]
		} else {
			t.Vendor, t.OS = parts[1], parts[2]
		}
	default:
		t.Vendor, t.OS, t.ABI = parts[1], parts[2], strings.Join(parts[3:], "-")
	}
	if strings.HasPrefix(t.ABI, "android") {
		t.OS = "android"
	}
	return t
}

func (t Triple) String() string {
	return t.raw
}

// Contains reports whether the raw triple contains substr.
func (t Triple) Contains(substr string) bool {
	return strings.Contains(t.raw, substr)
}

// IsX86_64 reports whether the triple targets x86-64.
func (t Triple) IsX86_64() bool {
	return t.Arch == "x86_64"
}

// IsMSVC reports whether the triple targets the MSVC toolchain.
func (t Triple) IsMSVC() bool {
	return t.Contains("msvc")
}

var bigEndianArchs = []string{"powerpc", "powerpc64", "mips", "mips64", "s390x", "sparc64"}

// BigEndian reports whether the target architecture is big-endian.
func (t Triple) BigEndian() bool {
	return slices.Contains(bigEndianArchs, t.Arch)
}

var goArchs = map[string]string{
	"amd64":   "x86_64",
	"386":     "i686",
	"arm64":   "aarch64",
	"arm":     "armv7",
	"riscv64": "riscv64gc",
	"ppc64le": "powerpc64le",
	"ppc64":   "powerpc64",
	"s390x":   "s390x",
	"mips64":  "mips64",
}

var goOS = map[string]string{
	"linux":   "unknown-linux-gnu",
	"darwin":  "apple-darwin",
	"ios":     "apple-ios",
	"windows": "pc-windows-msvc",
	"freebsd": "unknown-freebsd",
	"openbsd": "unknown-openbsd",
	"netbsd":  "unknown-netbsd",
	"android": "linux-android",
}

// HostTriple returns the triple of the machine running the build.
func HostTriple() Triple {
	return tripleFor(runtime.GOOS, runtime.GOARCH)
}

func tripleFor(goos, goarch string) Triple {
	arch, ok := goArchs[goarch]
	if !ok {
		arch = goarch
	}
	osPart, ok := goOS[goos]
	if !ok {
		osPart = "unknown-" + goos
	}
	return ParseTriple(arch + "-" + osPart)
}
