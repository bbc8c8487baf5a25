package dag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.NotNil(t, g.nodes)
	assert.Empty(t, g.nodes)
}

func TestAddNode(t *testing.T) {
	g := New()

	g.AddNode("a", 0)
	assert.Len(t, g.nodes, 1)
	nodeA, ok := g.nodes["a"]
	require.True(t, ok)
	assert.Equal(t, "a", nodeA.id)
	assert.NotNil(t, nodeA.deps)
	assert.NotNil(t, nodeA.dependents)

	g.AddNode("a", 5) // Test idempotency
	assert.Len(t, g.nodes, 1)
	assert.Equal(t, 0, g.nodes["a"].index)

	g.AddNode("b", 1)
	assert.Equal(t, 2, g.Len())
}

func TestAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := New()
		g.AddNode("a", 0)
		g.AddNode("b", 1)

		err := g.AddEdge("a", "b") // b depends on a
		require.NoError(t, err)

		assert.True(t, g.HasEdge("a", "b"))
		assert.False(t, g.HasEdge("b", "a"))
		deps, err := g.Dependencies("b")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, deps)
		dependents, err := g.Dependents("a")
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, dependents)
	})

	t.Run("error cases", func(t *testing.T) {
		g := New()
		g.AddNode("a", 0)
		g.AddNode("b", 1)

		err := g.AddEdge("dne", "a")
		assert.ErrorContains(t, err, "source node not found")

		err = g.AddEdge("a", "dne")
		assert.ErrorContains(t, err, "destination node not found")

		err = g.AddEdge("a", "a")
		assert.ErrorContains(t, err, "self-referential edge")

		_, err = g.Dependencies("dne")
		assert.ErrorContains(t, err, "node not found")
	})
}

func TestReaches(t *testing.T) {
	g := New()
	for i, id := range []string{"a", "b", "c", "d"} {
		g.AddNode(id, i)
	}
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))

	assert.True(t, g.Reaches("a", "c"))
	assert.True(t, g.Reaches("a", "a"))
	assert.False(t, g.Reaches("c", "a"))
	assert.False(t, g.Reaches("a", "d"))
	assert.False(t, g.Reaches("dne", "a"))
}

func TestDetectCycles(t *testing.T) {
	t.Run("empty graph has no cycles", func(t *testing.T) {
		g := New()
		assert.NoError(t, g.DetectCycles())
	})

	t.Run("valid dag has no cycles", func(t *testing.T) {
		g := New()
		for i, id := range []string{"a", "b", "c", "d"} {
			g.AddNode(id, i)
		}
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))
		require.NoError(t, g.AddEdge("a", "c")) // Transitive edge
		require.NoError(t, g.AddEdge("c", "d"))
		assert.NoError(t, g.DetectCycles())
	})

	t.Run("longer cycle is detected with its path", func(t *testing.T) {
		g := New()
		for i, id := range []string{"a", "b", "c", "d"} {
			g.AddNode(id, i)
		}
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))
		require.NoError(t, g.AddEdge("c", "d"))
		require.NoError(t, g.AddEdge("d", "a")) // Cycle back to the start

		err := g.DetectCycles()

		var cyc *CyclicDependencyError
		require.True(t, errors.As(err, &cyc))
		assert.Equal(t, []string{"a", "b", "c", "d", "a"}, cyc.Cycle)
		assert.ErrorContains(t, err, "a -> b -> c -> d -> a")
	})

	t.Run("cycle in a disjoint component is detected", func(t *testing.T) {
		g := New()
		g.AddNode("a", 0)
		g.AddNode("b", 1)
		require.NoError(t, g.AddEdge("a", "b"))

		g.AddNode("x", 2)
		g.AddNode("y", 3)
		g.AddNode("z", 4)
		require.NoError(t, g.AddEdge("x", "y"))
		require.NoError(t, g.AddEdge("y", "z"))
		require.NoError(t, g.AddEdge("z", "y")) // Cycle

		err := g.DetectCycles()
		var cyc *CyclicDependencyError
		require.ErrorAs(t, err, &cyc)
		assert.Equal(t, []string{"y", "z", "y"}, cyc.Cycle)
	})
}

func TestTopologicalSort(t *testing.T) {
	t.Run("ties break by declaration index", func(t *testing.T) {
		g := New()
		g.AddNode("late", 3)
		g.AddNode("early", 0)
		g.AddNode("middle", 1)
		g.AddNode("after-early", 2)
		require.NoError(t, g.AddEdge("early", "after-early"))

		order, err := g.TopologicalSort()

		require.NoError(t, err)
		assert.Equal(t, []string{"early", "middle", "after-early", "late"}, order)
	})

	t.Run("dependency beats declaration index", func(t *testing.T) {
		g := New()
		g.AddNode("a", 0)
		g.AddNode("b", 1)
		require.NoError(t, g.AddEdge("b", "a"))

		order, err := g.TopologicalSort()

		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, order)
	})

	t.Run("cycle is reported", func(t *testing.T) {
		g := New()
		g.AddNode("a", 0)
		g.AddNode("b", 1)
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "a"))

		_, err := g.TopologicalSort()

		var cyc *CyclicDependencyError
		require.ErrorAs(t, err, &cyc)
	})
}
