// Package requirement checks every precondition of a plan before anything
// runs and reports all unmet ones together.
package requirement

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/buildgrid/internal/buildctx"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/target"
)

// RequirementNotMetError reports one failing predicate.
type RequirementNotMetError struct {
	Target      string
	Requirement string
	// Param is the parameter the predicate inspects, if known.
	Param string
	// Err is set when the predicate could not be evaluated.
	Err error
}

func (e *RequirementNotMetError) Error() string {
	msg := fmt.Sprintf("target '%s': requirement not met: %s", e.Target, e.Requirement)
	if e.Param != "" {
		msg += fmt.Sprintf(" (parameter '%s')", e.Param)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RequirementNotMetError) Unwrap() error { return e.Err }

// UnmetError collects every failing requirement of a plan.
type UnmetError struct {
	Failures []*RequirementNotMetError
}

func (e *UnmetError) Error() string {
	lines := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		lines[i] = f.Error()
	}
	return fmt.Sprintf("%d requirement(s) not met:\n- %s", len(e.Failures), strings.Join(lines, "\n- "))
}

// Unwrap exposes the individual failures to errors.As.
func (e *UnmetError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Targets returns the distinct names of targets with unmet requirements.
func (e *UnmetError) Targets() []string {
	var out []string
	seen := map[string]bool{}
	for _, f := range e.Failures {
		if !seen[f.Target] {
			seen[f.Target] = true
			out = append(out, f.Target)
		}
	}
	return out
}

// Validate evaluates every requirement of every target, in order, and
// returns an *UnmetError listing all failures, or nil. It never stops at the
// first failure and never runs an action.
func Validate(ctx context.Context, targets []*target.Target, bctx *buildctx.Context) error {
	logger := ctxlog.FromContext(ctx)
	var failures []*RequirementNotMetError
	checked := 0

	for _, t := range targets {
		for _, req := range t.Requirements() {
			checked++
			ok, err := evaluate(req, bctx)
			if ok && err == nil {
				logger.Debug("Requirement met.", "target", t.Name(), "requirement", req.Description)
				continue
			}
			failure := &RequirementNotMetError{Target: t.Name(), Requirement: req.Description, Param: req.Param, Err: err}
			logger.Debug("Requirement not met.", "target", t.Name(), "requirement", req.Description, "error", err)
			failures = append(failures, failure)
		}
	}

	if len(failures) > 0 {
		logger.Error("Requirement validation failed.", "checked", checked, "failed", len(failures))
		return &UnmetError{Failures: failures}
	}
	logger.Debug("All requirements met.", "checked", checked)
	return nil
}

// evaluate runs one predicate. A panic is reported as an evaluation error.
func evaluate(req target.Requirement, bctx *buildctx.Context) (ok bool, err error) {
	if req.Check == nil {
		return false, fmt.Errorf("requirement has no predicate")
	}
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("predicate panicked: %v", r)
		}
	}()
	return req.Check(bctx)
}
