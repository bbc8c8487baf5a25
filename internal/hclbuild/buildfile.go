package hclbuild

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/buildgrid/internal/buildctx"
	"github.com/vk/buildgrid/internal/invoker"
	"github.com/vk/buildgrid/internal/params"
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/target"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// BuildFile is the merged content of one or more build files.
type BuildFile struct {
	DefaultGoal string
	Parameters  []*Parameter
	Targets     []*Target
	Files       []string
}

// Parameter is a declared build parameter.
type Parameter struct {
	Name        string
	Description string
	Secret      bool
	Env         string
	File        string

	defaultExpr hcl.Expression
}

// Target is a target block as written, evaluated only when registered and run.
type Target struct {
	block *targetBlock
	file  string
	dir   string
	src   []byte
}

// Name returns the target's label.
func (t *Target) Name() string { return t.block.Name }

// File returns the path of the file that declared the target.
func (t *Target) File() string { return t.file }

// Declarations evaluates parameter defaults for host and returns them in
// declaration order.
func (bf *BuildFile) Declarations(host buildctx.Host) ([]params.Declaration, error) {
	ectx := hostContext(host)
	decls := make([]params.Declaration, 0, len(bf.Parameters))
	for _, p := range bf.Parameters {
		d := params.Declaration{
			Name:        p.Name,
			Description: p.Description,
			Secret:      p.Secret,
			EnvVar:      p.Env,
		}
		if isExprDefined(p.defaultExpr) {
			v, diags := p.defaultExpr.Value(ectx)
			if diags.HasErrors() {
				return nil, fmt.Errorf("failed to evaluate default of parameter '%s': %w", p.Name, diags)
			}
			d.Default = v
		}
		decls = append(decls, d)
	}
	return decls, nil
}

// Module registers the targets of a BuildFile, running their commands
// through Runner.
type Module struct {
	File   *BuildFile
	Runner invoker.Runner
}

// Register implements registry.Module.
func (m *Module) Register(r *registry.Registry) error {
	for _, t := range m.File.Targets {
		built, err := m.translate(t)
		if err != nil {
			return err
		}
		if err := r.Register(built); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) translate(t *Target) (*target.Target, error) {
	b := t.block
	builder := target.New(b.Name).
		DependsOn(b.DependsOn...).
		Before(b.Before...).
		After(b.After...)
	if b.Description != nil {
		builder.Describe(*b.Description)
	}

	if isExprDefined(b.Requires) {
		exprs, diags := hcl.ExprList(b.Requires)
		if diags.HasErrors() {
			return nil, fmt.Errorf("target '%s': requires must be a list: %w", b.Name, diags)
		}
		for _, expr := range exprs {
			builder.Requires(t.requirement(expr))
		}
	}

	if isExprDefined(b.Command) || len(b.Platforms) > 0 {
		builder.Executes(m.action(t))
	}
	return builder.Build(), nil
}

// requirement turns one element of a requires list into a predicate. The
// expression's source text is its description.
func (t *Target) requirement(expr hcl.Expression) target.Requirement {
	desc := strings.TrimSpace(string(expr.Range().SliceBytes(t.src)))
	return target.Requirement{
		Description: desc,
		Param:       paramOf(expr),
		Check: func(bctx *buildctx.Context) (bool, error) {
			v, diags := expr.Value(evalContext(bctx.Params(), bctx.Host()))
			if diags.HasErrors() {
				return false, diags
			}
			if v.IsNull() {
				return false, nil
			}
			v, err := convert.Convert(v, cty.Bool)
			if err != nil {
				return false, fmt.Errorf("%s: must evaluate to a bool: %w", desc, err)
			}
			return v.True(), nil
		},
	}
}

func (m *Module) action(t *Target) target.Action {
	return func(ctx context.Context, bctx *buildctx.Context) error {
		b := t.block
		if len(b.Platforms) > 0 && !slices.Contains(b.Platforms, bctx.Host().OS) {
			return target.Skip(fmt.Sprintf("not supported on %s", bctx.Host().OS))
		}
		if !isExprDefined(b.Command) {
			return nil
		}

		cmd, err := t.command(evalContext(bctx.Params(), bctx.Host()))
		if err != nil {
			return err
		}
		if len(cmd.Argv) == 0 {
			return nil
		}

		runner := m.Runner
		runner.Secrets = append(slices.Clone(runner.Secrets), bctx.Params().Secrets()...)
		return runner.Run(ctx, cmd)
	}
}

// command evaluates the command, dir and env attributes.
func (t *Target) command(ectx *hcl.EvalContext) (invoker.Command, error) {
	b := t.block
	cmd := invoker.Command{Dir: t.dir}

	if err := decodeExpr(b.Command, ectx, cty.List(cty.String), &cmd.Argv); err != nil {
		return cmd, fmt.Errorf("target '%s': invalid command: %w", b.Name, err)
	}

	if isExprDefined(b.Dir) {
		var dir string
		if err := decodeExpr(b.Dir, ectx, cty.String, &dir); err != nil {
			return cmd, fmt.Errorf("target '%s': invalid dir: %w", b.Name, err)
		}
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(t.dir, dir)
		}
		cmd.Dir = dir
	}

	if isExprDefined(b.Env) {
		if err := decodeExpr(b.Env, ectx, cty.Map(cty.String), &cmd.Env); err != nil {
			return cmd, fmt.Errorf("target '%s': invalid env: %w", b.Name, err)
		}
	}
	return cmd, nil
}

// decodeExpr evaluates expr, converts it to ty and stores it in out.
func decodeExpr(expr hcl.Expression, ectx *hcl.EvalContext, ty cty.Type, out any) error {
	v, diags := expr.Value(ectx)
	if diags.HasErrors() {
		return diags
	}
	if v.IsNull() {
		return errors.New("value is null")
	}
	v, err := convert.Convert(v, ty)
	if err != nil {
		return err
	}
	return gocty.FromCtyValue(v, out)
}
