package target

import (
	"errors"
	"fmt"
)

// State is the execution state of a target within one invocation.
type State string

const (
	StatePending   State = "PENDING"
	StateValidated State = "VALIDATED"
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
	StateSkipped   State = "SKIPPED"
)

// IsTerminal reports whether no further transition is allowed.
func (s State) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateSkipped:
		return true
	default:
		return false
	}
}

// IsSuccessful reports whether dependents may proceed after this state.
func (s State) IsSuccessful() bool {
	return s == StateSucceeded || s == StateSkipped
}

// ErrInvalidTransition is wrapped by every rejected state change.
var ErrInvalidTransition = errors.New("invalid state transition")

// Transition validates a state change for the named target and returns the
// new state.
func Transition(name string, from, to State) (State, error) {
	if !isAllowedTransition(from, to) {
		return from, fmt.Errorf("%w for target '%s': %s -> %s", ErrInvalidTransition, name, from, to)
	}
	return to, nil
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateValidated
	case StateValidated:
		return to == StateRunning
	case StateRunning:
		return to.IsTerminal()
	default:
		return false
	}
}

// SkipError is returned by an action that chose not to do its work, for
// example because it does not apply to the current platform.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "skipped: " + e.Reason
}

// Skip returns an error that marks the running target as Skipped rather
// than Failed.
func Skip(reason string) error {
	return &SkipError{Reason: reason}
}

// IsSkip reports whether err asks for the target to be skipped.
func IsSkip(err error) (*SkipError, bool) {
	var skip *SkipError
	if errors.As(err, &skip) {
		return skip, true
	}
	return nil, false
}
