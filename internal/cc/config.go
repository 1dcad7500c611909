package cc

import (
	"slices"
	"strings"
)

// Define is a preprocessor definition. An empty Value defines a bare macro.
type Define struct {
	Name  string
	Value string
}

// Def is shorthand for a Define with an optional value.
func Def(name string, value ...string) Define {
	d := Define{Name: name}
	if len(value) > 0 {
		d.Value = value[0]
	}
	return d
}

// Arg renders the define as a compiler argument.
func (d Define) Arg(msvc bool) string {
	prefix := "-D"
	if msvc {
		prefix = "/D"
	}
	if d.Value == "" {
		return prefix + d.Name
	}
	return prefix + d.Name + "=" + d.Value
}

func (d Define) String() string {
	if d.Value == "" {
		return d.Name
	}
	return d.Name + "=" + d.Value
}

// Flag is a compiler flag. Flags marked IfSupported are probed against the
// compiler first and silently dropped when it rejects them.
type Flag struct {
	Value       string
	IfSupported bool
}

// F is a flag that is always passed.
func F(v string) Flag { return Flag{Value: v} }

// FIfSupported is a flag passed only when the compiler accepts it.
func FIfSupported(v string) Flag { return Flag{Value: v, IfSupported: true} }

// Config is the ordered compiler configuration of one archive.
type Config struct {
	Includes []string
	Defines  []Define
	Flags    []Flag
	Std      string // e.g. -std=c++17; empty means the compiler default
}

// Include appends include directories.
func (c *Config) Include(dirs ...string) *Config {
	c.Includes = append(c.Includes, dirs...)
	return c
}

// Define appends definitions.
func (c *Config) Define(defs ...Define) *Config {
	c.Defines = append(c.Defines, defs...)
	return c
}

// Flag appends flags.
func (c *Config) Flag(flags ...Flag) *Config {
	c.Flags = append(c.Flags, flags...)
	return c
}

// Merge appends every list of d onto c, keeping the order of both. Std in d
// replaces Std in c when set.
func (c *Config) Merge(d Config) *Config {
	c.Include(d.Includes...)
	c.Define(d.Defines...)
	c.Flag(d.Flags...)
	if d.Std != "" {
		c.Std = d.Std
	}
	return c
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	return Config{
		Includes: slices.Clone(c.Includes),
		Defines:  slices.Clone(c.Defines),
		Flags:    slices.Clone(c.Flags),
		Std:      c.Std,
	}
}

// Args renders the configuration as compiler arguments: std, flags,
// includes, then defines.
func (c Config) Args(msvc bool) []string {
	var args []string
	if c.Std != "" {
		args = append(args, c.Std)
	}
	for _, f := range c.Flags {
		args = append(args, f.Value)
	}
	inc := "-I"
	if msvc {
		inc = "/I"
	}
	for _, dir := range c.Includes {
		args = append(args, inc+dir)
	}
	for _, d := range c.Defines {
		args = append(args, d.Arg(msvc))
	}
	return args
}

// DefaultStd is used when no C++ standard override is configured.
const DefaultStd = "-std=c++17"

// NormalizeStd turns a C++ standard override into a flag. Both "c++20" and
// "-std=c++20" yield "-std=c++20"; an empty value yields DefaultStd.
func NormalizeStd(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return DefaultStd
	}
	if !strings.HasPrefix(v, "-std=") {
		return "-std=" + v
	}
	return v
}
