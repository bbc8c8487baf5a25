package executor

import (
	"fmt"
)

// ActionFailure reports the target whose action failed or panicked. It is
// the only error that can occur after earlier targets have already run.
type ActionFailure struct {
	Target string
	Err    error
}

func (e *ActionFailure) Error() string {
	return fmt.Sprintf("target '%s' failed: %v", e.Target, e.Err)
}

func (e *ActionFailure) Unwrap() error { return e.Err }

// PanicError carries the value recovered from a panicking action.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// InterruptedError reports that the build stopped before Next could start.
type InterruptedError struct {
	Next string
	Err  error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("build interrupted before target '%s': %v", e.Next, e.Err)
}

func (e *InterruptedError) Unwrap() error { return e.Err }
