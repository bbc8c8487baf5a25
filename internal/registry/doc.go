// Package registry holds the named targets known to one build invocation.
//
// The registry is populated once at startup, either directly in code or by
// Modules such as a loaded build file, and is read-only afterwards. Names
// are unique and compared case-insensitively; declaration order is kept and
// used as the deterministic tie-breaker when ordering a plan.
package registry
