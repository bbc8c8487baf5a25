package inmemorystore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vk/buildgrid/internal/statestore"
	"github.com/vk/buildgrid/internal/target"
)

// Store is an in-memory statestore.Store. Records are immutable values
// swapped atomically per target, so readers never observe a half-written
// record.
type Store struct {
	records sync.Map // Key: target name, Value: *statestore.Record

	mu    sync.RWMutex
	order []string

	now func() time.Time
}

// New creates a new, empty in-memory state store.
func New() *Store {
	return &Store{now: time.Now}
}

// Init starts tracking names, all Pending. Calling Init again replaces the
// tracked set.
func (s *Store) Init(ctx context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records.Range(func(k, _ any) bool {
		s.records.Delete(k)
		return true
	})
	s.order = append([]string(nil), names...)
	for _, name := range names {
		s.records.Store(name, &statestore.Record{Target: name, State: target.StatePending})
	}
	return nil
}

// Transition validates and applies a state change.
func (s *Store) Transition(ctx context.Context, name string, to target.State, err error) (statestore.Record, error) {
	for {
		v, ok := s.records.Load(name)
		if !ok {
			return statestore.Record{}, fmt.Errorf("%w: %s", statestore.ErrUnknownTarget, name)
		}
		old := v.(*statestore.Record)
		if _, terr := target.Transition(name, old.State, to); terr != nil {
			return *old, terr
		}

		next := *old
		next.State = to
		switch {
		case to == target.StateRunning:
			next.Started = s.now()
		case to.IsTerminal():
			next.Finished = s.now()
			next.Err = err
		}
		if s.records.CompareAndSwap(name, old, &next) {
			return next, nil
		}
	}
}

// Get returns the current record for name.
func (s *Store) Get(ctx context.Context, name string) (statestore.Record, error) {
	v, ok := s.records.Load(name)
	if !ok {
		return statestore.Record{}, fmt.Errorf("%w: %s", statestore.ErrUnknownTarget, name)
	}
	return *v.(*statestore.Record), nil
}

// Snapshot returns every record in the order passed to Init.
func (s *Store) Snapshot(ctx context.Context) ([]statestore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]statestore.Record, 0, len(s.order))
	for _, name := range s.order {
		if v, ok := s.records.Load(name); ok {
			out = append(out, *v.(*statestore.Record))
		}
	}
	return out, nil
}
