package bindgen

import (
	"regexp"
	"strings"
)

// Denylist removes or hides C items before bindings are emitted. Every
// pattern is matched against the whole C name.
type Denylist struct {
	Types     []*regexp.Regexp // typedefs and struct/union/enum tags to omit
	Opaque    []*regexp.Regexp // types emitted only as an opaque placeholder
	Functions []*regexp.Regexp // function prototypes to omit
	Macros    []*regexp.Regexp // macros to drop from the constants
	Items     []*regexp.Regexp // any item, whatever its kind
}

// Names returns anchored patterns matching exactly the given names.
func Names(names ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(names))
	for i, n := range names {
		out[i] = regexp.MustCompile("^(?:" + regexp.QuoteMeta(n) + ")$")
	}
	return out
}

// Patterns compiles anchored regular expressions. It panics on an invalid
// pattern and is meant for package level tables.
func Patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile("^(?:" + e + ")$")
	}
	return out
}

// PackedTypes are SPDK wire structures declared packed or with bitfields.
// Their C layout cannot be reproduced field by field.
var PackedTypes = []string{
	"spdk_nvme_tcp_rsp",
	"spdk_nvme_tcp_cmd",
	"spdk_nvmf_fabric_prop_get_rsp",
	"spdk_nvmf_fabric_connect_rsp",
	"spdk_nvmf_fabric_connect_cmd",
	"spdk_nvmf_fabric_auth_send_cmd",
	"spdk_nvmf_fabric_auth_recv_cmd",
	"spdk_nvme_health_information_page",
	"spdk_nvme_ctrlr_data",
}

// FloatClassMacros collide with the enum of the same names in math.h.
var FloatClassMacros = []string{"FP_INFINITE", "FP_NAN", "FP_NORMAL", "FP_SUBNORMAL", "FP_ZERO"}

// Defaults returns the denylist used for RocksDB's C API, extended for the
// SPDK headers when spdk is set.
func Defaults(spdk bool) Denylist {
	if !spdk {
		return Denylist{Types: Names("max_align_t")}
	}
	return Denylist{
		Types:     Names(append(PackedTypes, "max_align_t")...),
		Opaque:    Names("spdk_nvme_sgl_descriptor"),
		Functions: Names("spdk_nvme_ctrlr_get_data"),
		Macros:    Names(FloatClassMacros...),
		Items:     Patterns(`IPPORT_.*`),
	}
}

func matchAny(list []*regexp.Regexp, name string) bool {
	for _, re := range list {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func (d *Denylist) item(name string) bool { return matchAny(d.Items, name) }

// OmitsType reports whether the typedef or tag name is dropped.
func (d *Denylist) OmitsType(name string) bool {
	return matchAny(d.Types, name) || d.item(name)
}

// IsOpaque reports whether the type is replaced by a placeholder.
func (d *Denylist) IsOpaque(name string) bool { return matchAny(d.Opaque, name) }

// OmitsFunction reports whether the function is dropped.
func (d *Denylist) OmitsFunction(name string) bool {
	return matchAny(d.Functions, name) || d.item(name)
}

// OmitsMacro reports whether the macro constant is dropped.
func (d *Denylist) OmitsMacro(name string) bool {
	return matchAny(d.Macros, name) || d.item(name)
}

// String lists the patterns, for plan output.
func (d Denylist) String() string {
	var parts []string
	add := func(kind string, list []*regexp.Regexp) {
		for _, re := range list {
			parts = append(parts, kind+"="+strings.TrimSuffix(strings.TrimPrefix(re.String(), "^(?:"), ")$"))
		}
	}
	add("type", d.Types)
	add("opaque", d.Opaque)
	add("function", d.Functions)
	add("macro", d.Macros)
	add("item", d.Items)
	return strings.Join(parts, " ")
}
