package dag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoGoals is returned when Build is called without any goal.
var ErrNoGoals = errors.New("no goals requested")

// CyclicDependencyError reports a cycle among hard dependencies. Cycle lists
// the names along the cycle and repeats the first one at the end.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency: %s", strings.Join(e.Cycle, " -> "))
}

// DiagnosticKind classifies a non-fatal planning finding.
type DiagnosticKind string

const (
	// SoftCycleDropped marks an ordering hint ignored because honouring it
	// would have created a cycle.
	SoftCycleDropped DiagnosticKind = "soft_cycle_dropped"
	// UnknownOrderingReference marks a Before/After name that is not registered.
	UnknownOrderingReference DiagnosticKind = "unknown_ordering_reference"
)

// Diagnostic is a non-fatal finding recorded while planning.
type Diagnostic struct {
	Kind   DiagnosticKind
	Target string
	// From and To describe the ordering edge, From running first.
	From string
	To   string
}

func (d Diagnostic) String() string {
	switch d.Kind {
	case SoftCycleDropped:
		return fmt.Sprintf("ordering hint on '%s' (%s before %s) ignored: it would create a cycle", d.Target, d.From, d.To)
	case UnknownOrderingReference:
		ref := d.To
		if ref == d.Target {
			ref = d.From
		}
		return fmt.Sprintf("ordering hint on '%s' references unknown target '%s'", d.Target, ref)
	default:
		return string(d.Kind)
	}
}
