package inmemorystore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildgrid/internal/statestore"
	"github.com/vk/buildgrid/internal/target"
)

var _ statestore.Store = (*Store)(nil)

func TestInit_StartsPending(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Init(ctx, []string{"Restore", "Compile"}))

	rec, err := s.Get(ctx, "Compile")
	require.NoError(t, err)
	assert.Equal(t, target.StatePending, rec.State)
	assert.Zero(t, rec.Duration())

	_, err = s.Get(ctx, "Pack")
	assert.ErrorIs(t, err, statestore.ErrUnknownTarget)
}

func TestTransition_FullLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	require.NoError(t, s.Init(ctx, []string{"Compile"}))

	_, err := s.Transition(ctx, "Compile", target.StateValidated, nil)
	require.NoError(t, err)
	_, err = s.Transition(ctx, "Compile", target.StateRunning, nil)
	require.NoError(t, err)
	boom := errors.New("exit status 1")
	rec, err := s.Transition(ctx, "Compile", target.StateFailed, boom)
	require.NoError(t, err)

	assert.Equal(t, target.StateFailed, rec.State)
	assert.Equal(t, boom, rec.Err)
	assert.Equal(t, time.Second, rec.Duration())
}

func TestTransition_RejectsInvalidChanges(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Init(ctx, []string{"Compile"}))

	rec, err := s.Transition(ctx, "Compile", target.StateRunning, nil)
	require.ErrorIs(t, err, target.ErrInvalidTransition)
	assert.Equal(t, target.StatePending, rec.State)

	_, err = s.Transition(ctx, "Pack", target.StateValidated, nil)
	assert.ErrorIs(t, err, statestore.ErrUnknownTarget)
}

func TestSnapshot_KeepsPlanOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	names := []string{"Restore", "Compile", "Test", "Pack"}
	require.NoError(t, s.Init(ctx, names))
	_, err := s.Transition(ctx, "Test", target.StateValidated, nil)
	require.NoError(t, err)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 4)
	for i, rec := range snap {
		assert.Equal(t, names[i], rec.Target)
	}
	assert.Equal(t, target.StateValidated, snap[2].State)

	require.NoError(t, s.Init(ctx, []string{"Clean"}))
	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 1, "Init replaces the tracked set")
}

// TestStore_ConcurrentAccess verifies that the store can be safely accessed by
// multiple goroutines simultaneously without data races or lost writes.
func TestStore_ConcurrentAccess(t *testing.T) {
	s := New()
	ctx := context.Background()
	numGoroutines := 100
	names := make([]string, numGoroutines)
	for i := range names {
		names[i] = fmt.Sprintf("target-%d", i)
	}
	require.NoError(t, s.Init(ctx, names))

	var wg sync.WaitGroup
	wg.Add(numGoroutines * 2)
	for i := 0; i < numGoroutines; i++ {
		go func(name string) {
			defer wg.Done()
			for _, st := range []target.State{target.StateValidated, target.StateRunning, target.StateSucceeded} {
				if _, err := s.Transition(ctx, name, st, nil); err != nil {
					t.Errorf("transition %s to %s: %v", name, st, err)
					return
				}
			}
		}(names[i])
		go func() {
			defer wg.Done()
			_, _ = s.Snapshot(ctx)
		}()
	}
	wg.Wait()

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	for _, rec := range snap {
		assert.Equal(t, target.StateSucceeded, rec.State, rec.Target)
	}
}
