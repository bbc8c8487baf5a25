package hclbuild

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/fsutil"
	"github.com/vk/buildgrid/internal/params"
)

// Extension is the file extension searched for in build file directories.
const Extension = ".hcl"

// Loader reads build files.
type Loader struct{}

// NewLoader creates a new build file loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every build file found under paths and merges them into one
// BuildFile. Targets and parameters keep the order they appear in, files
// being read in the order CollectFiles returns them.
func (l *Loader) Load(ctx context.Context, paths ...string) (*BuildFile, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build file loader started.", "path_count", len(paths))

	files, err := fsutil.CollectFiles(paths, Extension)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no build files found in %v", paths)
	}
	logger.Debug("Discovered build files.", "count", len(files))

	bf := &BuildFile{}
	var goalFrom string
	parser := hclparse.NewParser()

	for _, file := range files {
		hclFile, diags := parse(parser, file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		if root.DefaultGoal != nil {
			if goalFrom != "" {
				return nil, fmt.Errorf("default_goal is set in both %s and %s", goalFrom, file)
			}
			goalFrom = file
			bf.DefaultGoal = *root.DefaultGoal
		}

		dir, err := filepath.Abs(filepath.Dir(file))
		if err != nil {
			return nil, fmt.Errorf("error resolving directory of %s: %w", file, err)
		}
		for _, p := range root.Parameters {
			bf.Parameters = append(bf.Parameters, translateParameter(p, file))
		}
		for _, t := range root.Targets {
			bf.Targets = append(bf.Targets, &Target{block: t, file: file, dir: dir, src: hclFile.Bytes})
		}
		bf.Files = append(bf.Files, file)
	}

	if err := bf.check(); err != nil {
		return nil, err
	}

	logger.Debug("Build file loading complete.", "files", len(bf.Files), "parameters", len(bf.Parameters), "targets", len(bf.Targets))
	return bf, nil
}

// parse accepts HCL native syntax and, for files ending in .json, the JSON variant.
func parse(parser *hclparse.Parser, file string) (*hcl.File, hcl.Diagnostics) {
	if filepath.Ext(file) == ".json" {
		return parser.ParseJSONFile(file)
	}
	return parser.ParseHCLFile(file)
}

func translateParameter(p *parameterBlock, file string) *Parameter {
	param := &Parameter{Name: p.Name, File: file, defaultExpr: p.Default}
	if p.Description != nil {
		param.Description = *p.Description
	}
	if p.Secret != nil {
		param.Secret = *p.Secret
	}
	if p.Env != nil {
		param.Env = *p.Env
	}
	return param
}

// check validates references across all loaded files.
func (bf *BuildFile) check() error {
	declared := make(map[string]string, len(bf.Parameters))
	for _, p := range bf.Parameters {
		canon := params.Canonical(p.Name)
		if prev, dup := declared[canon]; dup {
			return fmt.Errorf("parameter '%s' is declared more than once (also as '%s')", p.Name, prev)
		}
		declared[canon] = p.Name
	}

	for _, p := range bf.Parameters {
		// Defaults are evaluated before any parameter is known.
		if err := checkReferences(fmt.Sprintf("parameter '%s' default", p.Name), nil, p.defaultExpr); err != nil {
			return err
		}
	}

	for _, t := range bf.Targets {
		owner := fmt.Sprintf("target '%s' (%s)", t.Name(), t.file)
		if err := checkReferences(owner, declared, t.block.Expressions()...); err != nil {
			return err
		}
		if isExprDefined(t.block.Requires) {
			if _, diags := hcl.ExprList(t.block.Requires); diags.HasErrors() {
				return fmt.Errorf("%s: requires must be a list: %w", owner, diags)
			}
		}
		if isExprDefined(t.block.Command) {
			if _, diags := hcl.ExprList(t.block.Command); diags.HasErrors() {
				return fmt.Errorf("%s: command must be a list: %w", owner, diags)
			}
		}
	}
	return nil
}
