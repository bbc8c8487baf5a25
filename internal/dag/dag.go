package dag

import (
	"container/heap"
	"fmt"
	"sort"
)

// node is a vertex of the graph. deps run before the node, dependents after.
type node struct {
	id         string
	index      int
	deps       map[string]*node
	dependents map[string]*node
}

// Graph is a directed graph of named nodes. An edge from -> to means from
// must run before to. Each node carries a declaration index used to order
// otherwise unordered nodes.
type Graph struct {
	nodes map[string]*node
}

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds a new node with the given ID and declaration index. If a node
// with the same ID already exists, the function does nothing.
func (g *Graph) AddNode(id string, index int) {
	if _, ok := g.nodes[id]; ok {
		return
	}

	g.nodes[id] = &node{
		id:         id,
		index:      index,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` has a dependency on `fromID`. An error is returned
// if either node does not exist or if the edge would create a self-reference.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}

	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode

	return nil
}

// HasEdge reports whether fromID -> toID exists.
func (g *Graph) HasEdge(fromID, toID string) bool {
	n, ok := g.nodes[fromID]
	if !ok {
		return false
	}
	_, ok = n.dependents[toID]
	return ok
}

// Reaches reports whether a path fromID -> ... -> toID exists.
func (g *Graph) Reaches(fromID, toID string) bool {
	start, ok := g.nodes[fromID]
	if !ok {
		return false
	}
	seen := map[string]bool{fromID: true}
	stack := []*node{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.id == toID {
			return true
		}
		for id, d := range n.dependents {
			if !seen[id] {
				seen[id] = true
				stack = append(stack, d)
			}
		}
	}
	return false
}

// Dependencies returns the IDs the given node depends on, in declaration order.
func (g *Graph) Dependencies(id string) ([]string, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return ids(sorted(n.deps)), nil
}

// Dependents returns the IDs that depend on the given node, in declaration order.
func (g *Graph) Dependents(id string) ([]string, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return ids(sorted(n.dependents)), nil
}

// DetectCycles checks the graph for any cycles. It returns a
// *CyclicDependencyError naming the first cycle found, visiting nodes in
// declaration order so the reported path is stable.
func (g *Graph) DetectCycles() error {
	// permanent: fully visited and not part of a cycle.
	// onStack: position in the current traversal path.
	permanent := make(map[string]bool)
	onStack := make(map[string]int)
	var path []string

	var visit func(n *node) error
	visit = func(n *node) error {
		if permanent[n.id] {
			return nil
		}
		if pos, ok := onStack[n.id]; ok {
			cycle := append(append([]string(nil), path[pos:]...), n.id)
			return &CyclicDependencyError{Cycle: cycle}
		}

		onStack[n.id] = len(path)
		path = append(path, n.id)

		for _, dependent := range sorted(n.dependents) {
			if err := visit(dependent); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		delete(onStack, n.id)
		permanent[n.id] = true

		return nil
	}

	for _, n := range g.ordered() {
		if !permanent[n.id] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}

	return nil
}

// TopologicalSort orders the nodes with Kahn's algorithm. Whenever several
// nodes are ready at once, the one with the lowest declaration index goes
// first, so identical graphs always yield identical orders.
func (g *Graph) TopologicalSort() ([]string, error) {
	indeg := make(map[string]int, len(g.nodes))
	ready := &nodeHeap{}
	heap.Init(ready)
	for id, n := range g.nodes {
		indeg[id] = len(n.deps)
		if indeg[id] == 0 {
			heap.Push(ready, n)
		}
	}

	out := make([]string, 0, len(g.nodes))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(*node)
		out = append(out, n.id)
		for id, d := range n.dependents {
			indeg[id]--
			if indeg[id] == 0 {
				heap.Push(ready, d)
			}
		}
	}

	if len(out) != len(g.nodes) {
		if err := g.DetectCycles(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("topological sort visited %d of %d nodes", len(out), len(g.nodes))
	}
	return out, nil
}

func (g *Graph) ordered() []*node {
	return sorted(g.nodes)
}

// nodeHeap is a min-heap of nodes keyed on declaration index.
type nodeHeap []*node

func (h nodeHeap) Len() int           { return len(h) }
func (h nodeHeap) Less(i, j int) bool { return h[i].index < h[j].index }
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)        { *h = append(*h, x.(*node)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func sorted(m map[string]*node) []*node {
	out := make([]*node, 0, len(m))
	for _, n := range m {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}

func ids(nodes []*node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.id
	}
	return out
}
