package dag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/target"
)

func testContext(buf *bytes.Buffer) context.Context {
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctxlog.WithLogger(context.Background(), logger)
}

// pipeline registers the canonical package build: Clean is only ordered
// before Restore, the rest form a DependsOn chain.
func pipeline(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	r.MustRegister(
		target.New("Clean").Before("Restore").Build(),
		target.New("Restore").Build(),
		target.New("Compile").DependsOn("Restore").Build(),
		target.New("Test").DependsOn("Compile").Build(),
		target.New("Pack").DependsOn("Test").Build(),
		target.New("PackBeta").DependsOn("Test").Build(),
		target.New("Push").DependsOn("Pack").Build(),
	)
	return r
}

func TestBuild_SingleGoalChain(t *testing.T) {
	t.Parallel()

	plan, err := Build(context.Background(), pipeline(t), []string{"Pack"})

	require.NoError(t, err)
	assert.Equal(t, []string{"Restore", "Compile", "Test", "Pack"}, plan.Names())
	assert.Equal(t, []string{"Pack"}, plan.Goals)
	assert.Empty(t, plan.Diagnostics)
}

func TestBuild_SoftEdgeOnlyBetweenResolvedTargets(t *testing.T) {
	t.Parallel()

	t.Run("Clean is not pulled in by Before", func(t *testing.T) {
		plan, err := Build(context.Background(), pipeline(t), []string{"Compile"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Restore", "Compile"}, plan.Names())
	})

	t.Run("Clean is ordered before Restore when both are requested", func(t *testing.T) {
		plan, err := Build(context.Background(), pipeline(t), []string{"Compile", "Clean"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Clean", "Restore", "Compile"}, plan.Names())
		assert.Equal(t, []string{"Clean"}, plan.Dependencies("Restore"))
	})
}

func TestBuild_AfterHintOverridesDeclarationOrder(t *testing.T) {
	t.Parallel()

	r := registry.New()
	r.MustRegister(
		target.New("A").After("B").Build(),
		target.New("B").Build(),
	)

	plan, err := Build(context.Background(), r, []string{"A", "B"})

	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, plan.Names())
}

func TestBuild_MultipleGoalsShareDependency(t *testing.T) {
	t.Parallel()

	plan, err := Build(context.Background(), pipeline(t), []string{"PackBeta", "Pack", "pack"})

	require.NoError(t, err)
	assert.Equal(t, []string{"Restore", "Compile", "Test", "Pack", "PackBeta"}, plan.Names())
	assert.Equal(t, []string{"PackBeta", "Pack"}, plan.Goals)
}

func TestBuild_DependenciesPrecedeDependents(t *testing.T) {
	t.Parallel()

	// A diamond with extra fan-out, registered in reverse so declaration
	// order works against the dependency order.
	r := registry.New()
	r.MustRegister(
		target.New("Publish").DependsOn("Docs", "Binaries").Build(),
		target.New("Docs").DependsOn("Compile").Build(),
		target.New("Binaries").DependsOn("Compile", "Lint").Build(),
		target.New("Lint").Build(),
		target.New("Compile").DependsOn("Restore").Build(),
		target.New("Restore").Build(),
	)

	plan, err := Build(context.Background(), r, []string{"Publish"})
	require.NoError(t, err)
	require.Equal(t, r.Len(), plan.Len())

	position := map[string]int{}
	for i, name := range plan.Names() {
		position[name] = i
	}
	for _, tgt := range plan.Targets {
		for _, dep := range tgt.DependsOn() {
			assert.Less(t, position[dep], position[tgt.Name()], "%s must precede %s", dep, tgt.Name())
		}
	}
}

func TestBuild_IsDeterministic(t *testing.T) {
	t.Parallel()

	first, err := Build(context.Background(), pipeline(t), []string{"Push", "Clean", "PackBeta"})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Build(context.Background(), pipeline(t), []string{"Push", "Clean", "PackBeta"})
		require.NoError(t, err)
		require.Equal(t, first.Names(), again.Names(), "run %d", i)
	}
}

func TestBuild_HardCycles(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		edges map[string][]string
		goal  string
		cycle []string
	}{
		{
			name:  "self dependency",
			edges: map[string][]string{"A": {"A"}},
			goal:  "A",
			cycle: []string{"A", "A"},
		},
		{
			name:  "two targets",
			edges: map[string][]string{"A": {"B"}, "B": {"A"}},
			goal:  "A",
			cycle: []string{"A", "B", "A"},
		},
		{
			name:  "cycle below the goal",
			edges: map[string][]string{"Goal": {"A"}, "A": {"B"}, "B": {"C"}, "C": {"A"}},
			goal:  "Goal",
			cycle: []string{"A", "B", "C", "A"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := registry.New()
			for _, name := range []string{"Goal", "A", "B", "C"} {
				r.MustRegister(target.New(name).DependsOn(tc.edges[name]...).Build())
			}

			_, err := Build(context.Background(), r, []string{tc.goal})

			var cyc *CyclicDependencyError
			require.ErrorAs(t, err, &cyc)
			assert.Equal(t, tc.cycle, cyc.Cycle)
		})
	}
}

func TestBuild_SoftCycleIsDroppedWithDiagnostic(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Compile depends on Restore, yet Restore asks to run after Compile.
	var buf bytes.Buffer
	r := registry.New()
	r.MustRegister(
		target.New("Restore").After("Compile").Build(),
		target.New("Compile").DependsOn("Restore").Build(),
	)

	// --- Act ---
	plan, err := Build(testContext(&buf), r, []string{"Compile"})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"Restore", "Compile"}, plan.Names())
	require.Len(t, plan.Diagnostics, 1)
	d := plan.Diagnostics[0]
	assert.Equal(t, SoftCycleDropped, d.Kind)
	assert.Equal(t, "Restore", d.Target)
	assert.Equal(t, "Compile", d.From)
	assert.Equal(t, "Restore", d.To)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "would create a cycle")
}

func TestBuild_SoftHintsConflictingWithEachOther(t *testing.T) {
	t.Parallel()

	// A before B is honoured first (A is declared first); B before A then
	// closes a cycle and is dropped.
	r := registry.New()
	r.MustRegister(
		target.New("A").Before("B").Build(),
		target.New("B").Before("A").Build(),
	)

	plan, err := Build(context.Background(), r, []string{"B", "A"})

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, plan.Names())
	require.Len(t, plan.Diagnostics, 1)
	assert.Equal(t, "B", plan.Diagnostics[0].Target)
}

func TestBuild_UnknownOrderingReference(t *testing.T) {
	t.Parallel()

	r := registry.New()
	r.MustRegister(target.New("A").After("Ghost").Build())

	plan, err := Build(context.Background(), r, []string{"A"})

	require.NoError(t, err)
	require.Len(t, plan.Diagnostics, 1)
	assert.Equal(t, UnknownOrderingReference, plan.Diagnostics[0].Kind)
	assert.Contains(t, plan.Diagnostics[0].String(), "unknown target 'Ghost'")
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	t.Run("no goals", func(t *testing.T) {
		_, err := Build(context.Background(), pipeline(t), nil)
		assert.ErrorIs(t, err, ErrNoGoals)
	})

	t.Run("unknown goal", func(t *testing.T) {
		_, err := Build(context.Background(), pipeline(t), []string{"Pack", "Deploy"})
		var unknown *registry.UnknownTargetError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "Deploy", unknown.Name)
		assert.Empty(t, unknown.Referrer)
	})

	t.Run("unknown dependency names its referrer", func(t *testing.T) {
		r := registry.New()
		r.MustRegister(target.New("Compile").DependsOn("Restore").Build())

		_, err := Build(context.Background(), r, []string{"Compile"})

		var unknown *registry.UnknownTargetError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, "Restore", unknown.Name)
		assert.Equal(t, "Compile", unknown.Referrer)
	})
}

func BenchmarkBuild_LongChain(b *testing.B) {
	r := registry.New()
	for i := 0; i < 500; i++ {
		bld := target.New(fmt.Sprintf("T%03d", i))
		if i > 0 {
			bld.DependsOn(fmt.Sprintf("T%03d", i-1))
		}
		r.MustRegister(bld.Build())
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Build(context.Background(), r, []string{"T499"}); err != nil {
			b.Fatal(err)
		}
	}
}
