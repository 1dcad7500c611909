package cc

// upstreamWarnings matches the flags of RocksDB's CMakeLists.txt. They are
// passed through as-is and never turned into errors.
var upstreamWarnings = []string{
	"-Wsign-compare",
	"-Wshadow",
	"-Wno-unused-parameter",
	"-Wno-unused-variable",
	"-Woverloaded-virtual",
	"-Wnon-virtual-dtor",
	"-Wno-missing-field-initializers",
	"-Wno-strict-aliasing",
	"-Wno-invalid-offsetof",
}

// NoAssertions disables assert() in production builds.
var NoAssertions = Def("NDEBUG", "1")

// RocksDBTuning returns the language and diagnostic settings of the RocksDB
// archive. std is the configured C++ standard override and is ignored for
// MSVC, which always builds as C++17.
func RocksDBTuning(msvc bool, std string) Config {
	if msvc {
		return Config{
			Std:   "-std:c++17",
			Flags: []Flag{F("-EHsc")},
		}
	}
	cfg := Config{Std: NormalizeStd(std)}
	cfg.Define(Def("HAVE_UINT128_EXTENSION", "1"))
	for _, w := range upstreamWarnings {
		cfg.Flag(F(w))
	}
	return cfg
}

// SnappyTuning returns the language settings of the snappy archive, which
// requires C++11.
func SnappyTuning(msvc, bigEndian bool) Config {
	var cfg Config
	if msvc {
		cfg.Flag(F("-EHsc"))
	} else {
		cfg.Std = "-std=c++11"
	}
	if bigEndian {
		cfg.Define(Def("SNAPPY_IS_BIG_ENDIAN", "1"))
	}
	return cfg
}
