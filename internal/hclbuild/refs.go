package hclbuild

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/vk/buildgrid/internal/params"
)

// traversalKey generates a stable, canonical string representation for an
// hcl.Traversal, suitable for use as a map key.
func traversalKey(t hcl.Traversal) string {
	return string(hclwrite.TokensForTraversal(t).Bytes())
}

// extractReferencesAndFunctions walks through HCL expressions to find all unique
// variable traversals and function calls. The returned slices are sorted to
// ensure a deterministic order.
func extractReferencesAndFunctions(exprs ...hcl.Expression) ([]hcl.Traversal, []string) {
	traversals := make(map[string]hcl.Traversal)
	functions := make(map[string]struct{})

	for _, expr := range exprs {
		if expr == nil {
			continue
		}
		for _, traversal := range expr.Variables() {
			traversals[traversalKey(traversal)] = traversal
		}
		// Variables() does not report function calls, so walk the syntax tree.
		if syntaxExpr, ok := expr.(hclsyntax.Expression); ok {
			walkForFunctions(syntaxExpr, functions)
		}
	}

	keys := make([]string, 0, len(traversals))
	for k := range traversals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	traversalSlice := make([]hcl.Traversal, 0, len(keys))
	for _, k := range keys {
		traversalSlice = append(traversalSlice, traversals[k])
	}

	functionSlice := make([]string, 0, len(functions))
	for f := range functions {
		functionSlice = append(functionSlice, f)
	}
	sort.Strings(functionSlice)

	return traversalSlice, functionSlice
}

// walkForFunctions recursively walks the AST, looking only for function calls.
func walkForFunctions(expr hclsyntax.Expression, functions map[string]struct{}) {
	if expr == nil {
		return
	}
	switch e := expr.(type) {
	case *hclsyntax.FunctionCallExpr:
		functions[e.Name] = struct{}{}
		for _, arg := range e.Args {
			walkForFunctions(arg, functions)
		}
	case *hclsyntax.BinaryOpExpr:
		walkForFunctions(e.LHS, functions)
		walkForFunctions(e.RHS, functions)
	case *hclsyntax.ConditionalExpr:
		walkForFunctions(e.Condition, functions)
		walkForFunctions(e.TrueResult, functions)
		walkForFunctions(e.FalseResult, functions)
	case *hclsyntax.UnaryOpExpr:
		walkForFunctions(e.Val, functions)
	case *hclsyntax.TemplateExpr:
		for _, part := range e.Parts {
			walkForFunctions(part, functions)
		}
	case *hclsyntax.TemplateWrapExpr:
		walkForFunctions(e.Wrapped, functions)
	case *hclsyntax.TupleConsExpr:
		for _, item := range e.Exprs {
			walkForFunctions(item, functions)
		}
	case *hclsyntax.ObjectConsExpr:
		for _, item := range e.Items {
			walkForFunctions(item.KeyExpr, functions)
			walkForFunctions(item.ValueExpr, functions)
		}
	case *hclsyntax.ForExpr:
		walkForFunctions(e.CollExpr, functions)
		walkForFunctions(e.KeyExpr, functions)
		walkForFunctions(e.ValExpr, functions)
		walkForFunctions(e.CondExpr, functions)
	case *hclsyntax.IndexExpr:
		walkForFunctions(e.Collection, functions)
		walkForFunctions(e.Key, functions)
	case *hclsyntax.SplatExpr:
		walkForFunctions(e.Source, functions)
		walkForFunctions(e.Each, functions)
	case *hclsyntax.ParenthesesExpr:
		walkForFunctions(e.Expression, functions)
	}
}

// checkReferences verifies that exprs only use declared parameters, known
// build attributes and known functions.
func checkReferences(owner string, declared map[string]string, exprs ...hcl.Expression) error {
	traversals, functions := extractReferencesAndFunctions(exprs...)

	for _, tr := range traversals {
		root := tr.RootName()
		attr := ""
		if len(tr) > 1 {
			if step, ok := tr[1].(hcl.TraverseAttr); ok {
				attr = step.Name
			}
		}
		switch root {
		case "param":
			if attr == "" {
				return fmt.Errorf("%s: parameters must be referenced as param.<name>", owner)
			}
			name, ok := declared[params.Canonical(attr)]
			if !ok {
				return fmt.Errorf("%s: reference to undeclared parameter '%s'", owner, attr)
			}
			if name != attr {
				return fmt.Errorf("%s: parameter '%s' must be referenced as param.%s", owner, attr, name)
			}
		case "build":
			if _, ok := buildAttributes[attr]; !ok {
				return fmt.Errorf("%s: unknown build attribute '%s'", owner, attr)
			}
		default:
			return fmt.Errorf("%s: unknown variable '%s'", owner, root)
		}
	}

	for _, fn := range functions {
		if _, ok := functionTable[fn]; !ok {
			return fmt.Errorf("%s: call to unknown function '%s'", owner, fn)
		}
	}
	return nil
}

// paramOf returns the first parameter referenced by expr, if any.
func paramOf(expr hcl.Expression) string {
	traversals, _ := extractReferencesAndFunctions(expr)
	for _, tr := range traversals {
		if tr.RootName() != "param" || len(tr) < 2 {
			continue
		}
		if step, ok := tr[1].(hcl.TraverseAttr); ok {
			return step.Name
		}
	}
	return ""
}
