package dag

import (
	"context"
	"errors"
	"sort"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/target"
)

// Plan is the deterministic execution order for a set of goals.
type Plan struct {
	// Goals holds the requested goals under their registered names.
	Goals       []string
	Targets     []*target.Target
	Diagnostics []Diagnostic
	graph       *Graph
}

// Names returns the ordered target names.
func (p *Plan) Names() []string {
	names := make([]string, len(p.Targets))
	for i, t := range p.Targets {
		names[i] = t.Name()
	}
	return names
}

func (p *Plan) Len() int { return len(p.Targets) }

// Dependencies returns the names that must run before name in this plan,
// counting both hard edges and honoured ordering hints.
func (p *Plan) Dependencies(name string) []string {
	if p.graph == nil {
		return nil
	}
	deps, _ := p.graph.Dependencies(name)
	return deps
}

// Build resolves goals against reg and returns the ordered plan.
//
// The plan contains the goals and everything they transitively depend on,
// each exactly once. Ordering hints only apply between targets in the plan;
// a hint that would create a cycle is dropped and reported as a Diagnostic.
func Build(ctx context.Context, reg *registry.Registry, goals []string) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	if len(goals) == 0 {
		return nil, ErrNoGoals
	}

	c := &closure{reg: reg, graph: New(), done: map[string]bool{}, onStack: map[string]int{}}
	var resolvedGoals []string
	for _, goal := range goals {
		t, err := reg.Resolve(goal)
		if err != nil {
			return nil, err
		}
		resolvedGoals = appendUnique(resolvedGoals, t.Name())
		if err := c.visit(t); err != nil {
			return nil, err
		}
	}
	logger.Debug("Dependency closure resolved.", "goals", resolvedGoals, "targets", len(c.members))

	diags := overlaySoftEdges(c.graph, reg, c.members)
	for _, d := range diags {
		logger.Warn("Planning diagnostic: "+d.String(), "kind", string(d.Kind), "target", d.Target)
	}

	order, err := c.graph.TopologicalSort()
	if err != nil {
		return nil, err
	}

	plan := &Plan{Goals: resolvedGoals, Diagnostics: diags, graph: c.graph}
	for _, name := range order {
		t, err := reg.Resolve(name)
		if err != nil {
			return nil, err
		}
		plan.Targets = append(plan.Targets, t)
	}
	logger.Debug("Execution plan built.", "order", plan.Names())
	return plan, nil
}

// closure walks hard dependencies depth-first, adding nodes and edges to the
// graph and detecting cycles as it goes.
type closure struct {
	reg     *registry.Registry
	graph   *Graph
	members []*target.Target
	done    map[string]bool
	onStack map[string]int
	path    []string
}

func (c *closure) visit(t *target.Target) error {
	name := t.Name()
	if c.done[name] {
		return nil
	}
	if pos, ok := c.onStack[name]; ok {
		cycle := append(append([]string(nil), c.path[pos:]...), name)
		return &CyclicDependencyError{Cycle: cycle}
	}

	c.onStack[name] = len(c.path)
	c.path = append(c.path, name)
	c.graph.AddNode(name, c.reg.Index(name))

	for _, depName := range t.DependsOn() {
		dep, err := c.reg.Resolve(depName)
		if err != nil {
			var unknown *registry.UnknownTargetError
			if errors.As(err, &unknown) {
				unknown.Referrer = name
			}
			return err
		}
		if err := c.visit(dep); err != nil {
			return err
		}
		if err := c.graph.AddEdge(dep.Name(), name); err != nil {
			return err
		}
	}

	c.path = c.path[:len(c.path)-1]
	delete(c.onStack, name)
	c.done[name] = true
	c.members = append(c.members, t)
	return nil
}

// overlaySoftEdges adds Before/After edges between members, in declaration
// order, skipping any edge whose target already reaches its source.
func overlaySoftEdges(g *Graph, reg *registry.Registry, members []*target.Target) []Diagnostic {
	ordered := make([]*target.Target, len(members))
	copy(ordered, members)
	sortByIndex(ordered, reg)

	var diags []Diagnostic
	add := func(owner, from, to string) {
		if from == to || g.HasEdge(from, to) {
			return
		}
		if g.Reaches(to, from) {
			diags = append(diags, Diagnostic{Kind: SoftCycleDropped, Target: owner, From: from, To: to})
			return
		}
		// Both nodes are known members, so AddEdge cannot fail here.
		_ = g.AddEdge(from, to)
	}

	for _, t := range ordered {
		name := t.Name()
		for _, ref := range t.Before() {
			other, ok := member(g, reg, ref)
			if !ok {
				if !reg.Has(ref) {
					diags = append(diags, Diagnostic{Kind: UnknownOrderingReference, Target: name, From: name, To: ref})
				}
				continue
			}
			add(name, name, other)
		}
		for _, ref := range t.After() {
			other, ok := member(g, reg, ref)
			if !ok {
				if !reg.Has(ref) {
					diags = append(diags, Diagnostic{Kind: UnknownOrderingReference, Target: name, From: ref, To: name})
				}
				continue
			}
			add(name, other, name)
		}
	}
	return diags
}

// member returns the registered name of ref if it is part of the graph.
func member(g *Graph, reg *registry.Registry, ref string) (string, bool) {
	t, err := reg.Resolve(ref)
	if err != nil {
		return "", false
	}
	_, ok := g.nodes[t.Name()]
	return t.Name(), ok
}

func sortByIndex(ts []*target.Target, reg *registry.Registry) {
	sort.Slice(ts, func(i, j int) bool { return reg.Index(ts[i].Name()) < reg.Index(ts[j].Name()) })
}

func appendUnique(s []string, v string) []string {
	for _, e := range s {
		if e == v {
			return s
		}
	}
	return append(s, v)
}
