package hclbuild

import (
	"github.com/hashicorp/hcl/v2"
)

// fileRoot is used to decode all top-level content of a build file.
type fileRoot struct {
	DefaultGoal *string           `hcl:"default_goal,optional"`
	Parameters  []*parameterBlock `hcl:"parameter,block"`
	Targets     []*targetBlock    `hcl:"target,block"`
}

type parameterBlock struct {
	Name        string         `hcl:"name,label"`
	Description *string        `hcl:"description,optional"`
	Secret      *bool          `hcl:"secret,optional"`
	Env         *string        `hcl:"env,optional"`
	Default     hcl.Expression `hcl:"default,optional"`
}

type targetBlock struct {
	Name        string         `hcl:"name,label"`
	Description *string        `hcl:"description,optional"`
	DependsOn   []string       `hcl:"depends_on,optional"`
	Before      []string       `hcl:"before,optional"`
	After       []string       `hcl:"after,optional"`
	Platforms   []string       `hcl:"platforms,optional"`
	Requires    hcl.Expression `hcl:"requires,optional"`
	Command     hcl.Expression `hcl:"command,optional"`
	Dir         hcl.Expression `hcl:"dir,optional"`
	Env         hcl.Expression `hcl:"env,optional"`
}

// Expressions returns every expression that is evaluated at run time.
func (t *targetBlock) Expressions() []hcl.Expression {
	return []hcl.Expression{t.Requires, t.Command, t.Dir, t.Env}
}

// isExprDefined reports whether an optional attribute was actually written.
// The decoder fills omitted hcl.Expression fields with a zero-width null
// expression, so the source range is the reliable signal.
func isExprDefined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	return r.End.Byte > r.Start.Byte
}
