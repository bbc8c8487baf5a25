package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/buildgrid/internal/ctxlog"
)

// SelfDependencyError reports a target that lists itself as a hard dependency.
type SelfDependencyError struct {
	Name string
}

func (e *SelfDependencyError) Error() string {
	return fmt.Sprintf("target '%s' depends on itself", e.Name)
}

// ValidationError collects every problem found by Validate.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("registry validation failed:\n- %s", strings.Join(msgs, "\n- "))
}

func (e *ValidationError) Unwrap() []error { return e.Problems }

// Validate checks every registered target for references to names that do
// not exist. Hard dependencies are errors; ordering hints to unknown names
// are only logged, since they never affect which targets run.
func (r *Registry) Validate(ctx context.Context) error {
	var problems []error
	logger := ctxlog.FromContext(ctx)

	for _, t := range r.targets {
		for _, dep := range t.DependsOn() {
			if key(dep) == key(t.Name()) {
				problems = append(problems, &SelfDependencyError{Name: t.Name()})
				continue
			}
			if !r.Has(dep) {
				problems = append(problems, &UnknownTargetError{Name: dep, Referrer: t.Name(), Suggestions: r.suggest(dep)})
			}
		}
		for _, name := range append(t.Before(), t.After()...) {
			if !r.Has(name) {
				logger.Warn("Ordering hint references an unknown target.", "target", t.Name(), "reference", name)
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	logger.Debug("Registry validation passed.", "targets", len(r.targets))
	return nil
}
