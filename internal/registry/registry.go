package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vk/buildgrid/internal/target"
)

// Module is the interface that bundles of targets implement to be registered.
type Module interface {
	Register(r *Registry) error
}

// DuplicateTargetError reports a second registration under an existing name.
type DuplicateTargetError struct {
	Name     string
	Existing string
}

func (e *DuplicateTargetError) Error() string {
	if e.Existing != "" && e.Existing != e.Name {
		return fmt.Sprintf("target '%s' is already registered as '%s'", e.Name, e.Existing)
	}
	return fmt.Sprintf("target '%s' is already registered", e.Name)
}

// UnknownTargetError reports a reference to a name that was never registered.
type UnknownTargetError struct {
	Name string
	// Referrer is the target whose dependency list named Name, empty for goals.
	Referrer    string
	Suggestions []string
}

func (e *UnknownTargetError) Error() string {
	var b strings.Builder
	if e.Referrer != "" {
		fmt.Fprintf(&b, "target '%s' depends on unknown target '%s'", e.Referrer, e.Name)
	} else {
		fmt.Fprintf(&b, "unknown target '%s'", e.Name)
	}
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, " (did you mean: %s?)", strings.Join(e.Suggestions, ", "))
	}
	return b.String()
}

// Registry is an ordered collection of targets.
type Registry struct {
	targets []*target.Target
	index   map[string]int
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{index: make(map[string]int)}
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds t. It fails with *DuplicateTargetError when the name is
// already taken.
func (r *Registry) Register(t *target.Target) error {
	if t == nil || strings.TrimSpace(t.Name()) == "" {
		return fmt.Errorf("target name must not be empty")
	}
	k := key(t.Name())
	if i, ok := r.index[k]; ok {
		return &DuplicateTargetError{Name: t.Name(), Existing: r.targets[i].Name()}
	}
	r.index[k] = len(r.targets)
	r.targets = append(r.targets, t)
	return nil
}

// MustRegister is Register for statically declared targets; it panics on error.
func (r *Registry) MustRegister(targets ...*target.Target) {
	for _, t := range targets {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// RegisterModules registers every module in order, stopping at the first error.
func (r *Registry) RegisterModules(mods ...Module) error {
	for _, mod := range mods {
		if err := mod.Register(r); err != nil {
			return err
		}
	}
	return nil
}

// Resolve looks up a target by name.
func (r *Registry) Resolve(name string) (*target.Target, error) {
	if i, ok := r.index[key(name)]; ok {
		return r.targets[i], nil
	}
	return nil, &UnknownTargetError{Name: name, Suggestions: r.suggest(name)}
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.index[key(name)]
	return ok
}

// Index returns the declaration index of name, or -1.
func (r *Registry) Index(name string) int {
	if i, ok := r.index[key(name)]; ok {
		return i
	}
	return -1
}

// Targets returns all targets in declaration order.
func (r *Registry) Targets() []*target.Target {
	return append([]*target.Target(nil), r.targets...)
}

// Names returns all target names in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.targets))
	for i, t := range r.targets {
		names[i] = t.Name()
	}
	return names
}

func (r *Registry) Len() int { return len(r.targets) }

// suggest returns registered names that share a prefix with name or contain it.
func (r *Registry) suggest(name string) []string {
	k := key(name)
	if k == "" {
		return nil
	}
	var out []string
	for _, t := range r.targets {
		tk := key(t.Name())
		if strings.HasPrefix(tk, k) || strings.HasPrefix(k, tk) || strings.Contains(tk, k) {
			out = append(out, t.Name())
		}
	}
	sort.Strings(out)
	return out
}
