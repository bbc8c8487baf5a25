// Package target defines the unit of work of a build: a named action with
// hard dependencies, soft ordering hints and preconditions.
//
// Targets are built once with the fluent Builder and never change
// afterwards. Per-invocation state lives in a statestore.Store.
package target

import (
	"context"

	"github.com/vk/buildgrid/internal/buildctx"
)

// Action is the work a target performs. It receives the cancellable context
// of the invocation and the immutable build context.
type Action func(ctx context.Context, bctx *buildctx.Context) error

// Target is an immutable build target.
type Target struct {
	name        string
	description string
	dependsOn   []string
	before      []string
	after       []string
	requires    []Requirement
	action      Action
}

func (t *Target) Name() string        { return t.name }
func (t *Target) Description() string { return t.description }

// DependsOn lists targets that must run before this one and are pulled into
// the build whenever this target is.
func (t *Target) DependsOn() []string { return clone(t.dependsOn) }

// Before lists targets this one should precede when both are scheduled.
func (t *Target) Before() []string { return clone(t.before) }

// After lists targets this one should follow when both are scheduled.
func (t *Target) After() []string { return clone(t.after) }

func (t *Target) Requirements() []Requirement {
	return append([]Requirement(nil), t.requires...)
}

// HasAction reports whether the target does anything when run.
func (t *Target) HasAction() bool { return t.action != nil }

// Run invokes the action. A target without an action succeeds immediately.
func (t *Target) Run(ctx context.Context, bctx *buildctx.Context) error {
	if t.action == nil {
		return nil
	}
	return t.action(ctx, bctx)
}

// Builder populates a Target. Calls only record fields; nothing is
// validated until the target is registered.
type Builder struct {
	t Target
}

// New starts a target definition.
func New(name string) *Builder {
	return &Builder{t: Target{name: name}}
}

func (b *Builder) Describe(description string) *Builder {
	b.t.description = description
	return b
}

func (b *Builder) DependsOn(names ...string) *Builder {
	b.t.dependsOn = append(b.t.dependsOn, names...)
	return b
}

func (b *Builder) Before(names ...string) *Builder {
	b.t.before = append(b.t.before, names...)
	return b
}

func (b *Builder) After(names ...string) *Builder {
	b.t.after = append(b.t.after, names...)
	return b
}

func (b *Builder) Requires(reqs ...Requirement) *Builder {
	b.t.requires = append(b.t.requires, reqs...)
	return b
}

func (b *Builder) Executes(action Action) *Builder {
	b.t.action = action
	return b
}

// Build returns a copy of the accumulated definition.
func (b *Builder) Build() *Target {
	t := b.t
	t.dependsOn = clone(t.dependsOn)
	t.before = clone(t.before)
	t.after = clone(t.after)
	t.requires = append([]Requirement(nil), t.requires...)
	return &t
}

func clone(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return append([]string(nil), s...)
}
