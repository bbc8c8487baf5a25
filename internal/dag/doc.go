// Package dag turns requested goals into a deterministic, linear execution
// plan.
//
// Hard dependencies (DependsOn) decide which targets take part and are never
// violated; a cycle among them is fatal. Ordering hints (Before/After) only
// constrain targets that are already in the plan and give way, with a
// Diagnostic, when they would introduce a cycle. Ties are broken by the
// order in which targets were registered.
package dag
