package config

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/qiniu/x/log"
	"github.com/zclconf/go-cty/cty"
)

// File is the schema of rocksys.hcl. Unset attributes stay nil so the
// environment and the defaults can tell them apart from zero values.
//
//	target   = "x86_64-unknown-linux-gnu"
//	features = ["snappy", "lz4"]
//	jobs     = 8
//
//	library "rocksdb" {
//	  lib_dir = env.ROCKSDB_PREFIX
//	  static  = true
//	}
type File struct {
	Target            *string   `hcl:"target,optional"`
	TargetFeatures    *[]string `hcl:"target_features,optional"`
	Jobs              *int      `hcl:"jobs,optional"`
	OutDir            *string   `hcl:"out_dir,optional"`
	Features          *[]string `hcl:"features,optional"`
	CXXStd            *string   `hcl:"cxx_std,optional"`
	RocksDBIncludeDir *string   `hcl:"rocksdb_include_dir,optional"`
	Libraries         []Library `hcl:"library,block"`
}

// Library is a library "NAME" block.
type Library struct {
	Name    string  `hcl:"name,label"`
	Compile *string `hcl:"compile,optional"`
	LibDir  *string `hcl:"lib_dir,optional"`
	Static  *bool   `hcl:"static,optional"`
}

// LoadFile parses and decodes an HCL configuration file. Expressions may
// read environment variables as env.NAME; unset variables are empty strings.
func LoadFile(path string, lookup Lookup) (*File, error) {
	log.Debugf("config: decoding %s", path)
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %s", path, diags.Error())
	}

	var f File
	diags = gohcl.DecodeBody(file.Body, evalContext(file.Body, lookup), &f)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %s", path, diags.Error())
	}
	return &f, nil
}

// evalContext exposes, as the env object, the variables body refers to.
func evalContext(body hcl.Body, lookup Lookup) *hcl.EvalContext {
	names := map[string]bool{}
	if b, ok := body.(*hclsyntax.Body); ok {
		envRefs(b, names)
	}
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vars := make(map[string]cty.Value, len(keys))
	for _, k := range keys {
		v, _ := lookup(k)
		vars[k] = cty.StringVal(v)
	}
	env := cty.EmptyObjectVal
	if len(vars) > 0 {
		env = cty.ObjectVal(vars)
	}
	return &hcl.EvalContext{Variables: map[string]cty.Value{"env": env}}
}

func envRefs(b *hclsyntax.Body, names map[string]bool) {
	for _, attr := range b.Attributes {
		for _, tr := range attr.Expr.Variables() {
			if tr.RootName() != "env" || len(tr) < 2 {
				continue
			}
			if step, ok := tr[1].(hcl.TraverseAttr); ok {
				names[step.Name] = true
			}
		}
	}
	for _, block := range b.Blocks {
		envRefs(block.Body, names)
	}
}
