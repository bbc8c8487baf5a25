// Package statestore defines where the mutable execution state of targets
// lives during one build invocation.
//
// Targets themselves are immutable, so the executor records each state
// change here instead. The status server and event sinks read the same
// store while a build is running, so implementations must be safe for
// concurrent use. A store is created per invocation and discarded with it;
// nothing crosses invocations.
//
// States move Pending → Validated → Running → Succeeded | Failed | Skipped,
// and every change is checked with target.Transition.
package statestore

import (
	"context"
	"errors"
	"time"

	"github.com/vk/buildgrid/internal/target"
)

// ErrUnknownTarget is returned for a name that was not part of Init.
var ErrUnknownTarget = errors.New("target is not tracked by this store")

// Record is the state of one target at a point in time.
type Record struct {
	Target   string
	State    target.State
	Err      error
	Started  time.Time
	Finished time.Time
}

// Duration is the time spent running, or zero if the target never ran.
func (r Record) Duration() time.Duration {
	if r.Started.IsZero() || r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Store tracks target states for one invocation.
type Store interface {
	// Init starts tracking names, in plan order, all Pending.
	Init(ctx context.Context, names []string) error

	// Transition moves name to state. err is recorded for failed targets.
	// Running stamps the start time; terminal states stamp the finish time.
	Transition(ctx context.Context, name string, to target.State, err error) (Record, error)

	// Get returns the current record for name.
	Get(ctx context.Context, name string) (Record, error)

	// Snapshot returns every record in plan order.
	Snapshot(ctx context.Context) ([]Record, error)
}
