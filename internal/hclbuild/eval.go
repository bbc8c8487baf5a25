package hclbuild

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/buildgrid/internal/buildctx"
	"github.com/vk/buildgrid/internal/params"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// buildAttributes lists the attributes available under build.*.
var buildAttributes = map[string]struct{}{
	"os":       {},
	"is_local": {},
}

// IsSetFunc returns true when its argument is not null.
var IsSetFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "value", Type: cty.DynamicPseudoType, AllowNull: true, AllowDynamicType: true},
	},
	Type: function.StaticReturnType(cty.Bool),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return cty.BoolVal(!args[0].IsNull()), nil
	},
})

// NotEmptyFunc returns true for a non-blank string, a non-empty collection
// or any other non-null value.
var NotEmptyFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "value", Type: cty.DynamicPseudoType, AllowNull: true, AllowDynamicType: true},
	},
	Type: function.StaticReturnType(cty.Bool),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		v := args[0]
		switch {
		case v.IsNull():
			return cty.False, nil
		case v.Type() == cty.String:
			return cty.BoolVal(strings.TrimSpace(v.AsString()) != ""), nil
		case v.CanIterateElements():
			return cty.BoolVal(v.LengthInt() > 0), nil
		default:
			return cty.True, nil
		}
	},
})

// functionTable is the set of functions available to build file expressions.
var functionTable = map[string]function.Function{
	"isset":    IsSetFunc,
	"notempty": NotEmptyFunc,
	"lower":    stdlib.LowerFunc,
	"upper":    stdlib.UpperFunc,
	"join":     stdlib.JoinFunc,
	"concat":   stdlib.ConcatFunc,
	"format":   stdlib.FormatFunc,
	"coalesce": stdlib.CoalesceFunc,
}

// hostObject exposes the build host as build.*.
func hostObject(host buildctx.Host) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"os":       cty.StringVal(host.OS),
		"is_local": cty.BoolVal(host.IsLocal),
	})
}

// hostContext is used for parameter defaults, which cannot see parameters.
func hostContext(host buildctx.Host) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"build": hostObject(host)},
		Functions: functionTable,
	}
}

// evalContext is used for target expressions.
func evalContext(p *params.Set, host buildctx.Host) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"param": p.Object(),
			"build": hostObject(host),
		},
		Functions: functionTable,
	}
}
