package cc

// Toolchain is a C++ compiler and archiver pair. Two flavors are supported:
// gcc/clang-like drivers and MSVC (cl.exe + lib.exe).
type Toolchain struct {
	CXX  string
	AR   string
	MSVC bool
	PIC  bool              // pass -fPIC, gcc/clang only
	Env  map[string]string // applied to every compiler process
}

// NewToolchain returns the toolchain for a target. Empty cxx or ar select
// the flavor's default programs.
func NewToolchain(msvc, windows bool, cxx, ar string) Toolchain {
	tc := Toolchain{CXX: cxx, AR: ar, MSVC: msvc, PIC: !windows}
	if tc.CXX == "" {
		tc.CXX = "c++"
		if msvc {
			tc.CXX = "cl.exe"
		}
	}
	if tc.AR == "" {
		tc.AR = "ar"
		if msvc {
			tc.AR = "lib.exe"
		}
	}
	return tc
}

// ArchiveName is the file name of the static library name.
func (tc Toolchain) ArchiveName(name string) string {
	if tc.MSVC {
		return name + ".lib"
	}
	return "lib" + name + ".a"
}

func (tc Toolchain) objExt() string {
	if tc.MSVC {
		return ".obj"
	}
	return ".o"
}

// compileArgs returns the arguments compiling src into obj.
func (tc Toolchain) compileArgs(cfg Config, src, obj string) []string {
	var args []string
	if tc.MSVC {
		args = append(args, "/nologo", "/c", "/MD")
	} else {
		args = append(args, "-c", "-O2", "-ffunction-sections", "-fdata-sections")
		if tc.PIC {
			args = append(args, "-fPIC")
		}
	}
	args = append(args, cfg.Args(tc.MSVC)...)
	if tc.MSVC {
		args = append(args, "/Fo"+obj, src)
	} else {
		args = append(args, "-o", obj, src)
	}
	return args
}

// archiveArgs returns the arguments bundling objs into out.
func (tc Toolchain) archiveArgs(out string, objs []string) []string {
	if tc.MSVC {
		return append([]string{"/nologo", "/OUT:" + out}, objs...)
	}
	return append([]string{"crs", out}, objs...)
}
