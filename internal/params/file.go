package params

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a flat parameter file. YAML (.yaml, .yml), HCL (.hcl) and
// JSON (.json) are supported; every top-level key is one parameter.
func LoadFile(path string) (map[string]cty.Value, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAML(path)
	case ".hcl":
		return loadHCL(path, false)
	case ".json":
		return loadHCL(path, true)
	default:
		return nil, fmt.Errorf("unsupported parameter file type '%s': %s", filepath.Ext(path), path)
	}
}

func loadYAML(path string) (map[string]cty.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameter file %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse parameter file %s: %w", path, err)
	}
	out := make(map[string]cty.Value, len(raw))
	for k, v := range raw {
		cv, err := toCty(v)
		if err != nil {
			return nil, fmt.Errorf("parameter '%s' in %s: %w", k, path, err)
		}
		out[k] = cv
	}
	return out, nil
}

func loadHCL(path string, isJSON bool) (map[string]cty.Value, error) {
	parser := hclparse.NewParser()
	var (
		file  *hcl.File
		diags hcl.Diagnostics
	)
	if isJSON {
		file, diags = parser.ParseJSONFile(path)
	} else {
		file, diags = parser.ParseHCLFile(path)
	}
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse parameter file %s: %w", path, diags)
	}
	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode parameter file %s: %w", path, diags)
	}
	out := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to evaluate parameter '%s' in %s: %w", name, path, diags)
		}
		out[name] = v
	}
	return out, nil
}

// toCty converts a decoded YAML value into its cty equivalent.
func toCty(v any) (cty.Value, error) {
	switch t := v.(type) {
	case nil:
		return cty.NullVal(cty.String), nil
	case string:
		return cty.StringVal(t), nil
	case bool:
		return cty.BoolVal(t), nil
	case int:
		return cty.NumberIntVal(int64(t)), nil
	case int64:
		return cty.NumberIntVal(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return cty.NumberFloatVal(float64(t)), nil
		}
		return cty.NumberIntVal(int64(t)), nil
	case float64:
		return cty.NumberFloatVal(t), nil
	case []any:
		if len(t) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, 0, len(t))
		for _, e := range t {
			ce, err := toCty(e)
			if err != nil {
				return cty.NilVal, err
			}
			elems = append(elems, ce)
		}
		return cty.TupleVal(elems), nil
	case map[string]any:
		if len(t) == 0 {
			return cty.EmptyObjectVal, nil
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		attrs := make(map[string]cty.Value, len(t))
		for _, k := range keys {
			ce, err := toCty(t[k])
			if err != nil {
				return cty.NilVal, err
			}
			attrs[k] = ce
		}
		return cty.ObjectVal(attrs), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported value type %T", v)
	}
}
