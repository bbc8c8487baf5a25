package params

import (
	"log/slog"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

type entry struct {
	name  string
	value Value
}

// Set is an immutable collection of resolved parameters. Lookups are
// case-insensitive and ignore separators; see Canonical.
type Set struct {
	entries  map[string]entry
	declared map[string]string
}

// Empty returns a Set with no parameters.
func Empty() *Set {
	return &Set{entries: map[string]entry{}, declared: map[string]string{}}
}

// FromMap builds a Set from plain strings. It is mostly useful in tests and
// for code-only builds.
func FromMap(values map[string]string, secrets ...string) *Set {
	secret := make(map[string]bool, len(secrets))
	for _, s := range secrets {
		secret[Canonical(s)] = true
	}
	s := Empty()
	for k, v := range values {
		s.entries[Canonical(k)] = entry{name: k, value: StringValue(v, secret[Canonical(k)], SourceFlag)}
	}
	return s
}

// Lookup returns the value for name.
func (s *Set) Lookup(name string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	e, ok := s.entries[Canonical(name)]
	return e.value, ok
}

// IsSet reports whether name has a non-null value.
func (s *Set) IsSet(name string) bool {
	v, ok := s.Lookup(name)
	return ok && !v.IsNull()
}

// String returns the raw string form of name, or "" when unset.
func (s *Set) String(name string) string {
	v, ok := s.Lookup(name)
	if !ok {
		return ""
	}
	return v.Raw()
}

// IsSecret reports whether name holds a secret value.
func (s *Set) IsSecret(name string) bool {
	v, ok := s.Lookup(name)
	return ok && v.IsSecret()
}

// Names returns the display names of every parameter that has a value, sorted.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		names = append(names, e.name)
	}
	sort.Strings(names)
	return names
}

// Secrets returns the raw text of every non-empty secret value.
func (s *Set) Secrets() []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, e := range s.entries {
		if e.value.IsSecret() {
			if raw := e.value.Raw(); raw != "" {
				out = append(out, raw)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Object returns the parameters as a cty object keyed by display name.
// Declared parameters without a value are present as null strings so
// expressions can reference them.
func (s *Set) Object() cty.Value {
	attrs := map[string]cty.Value{}
	if s != nil {
		for canon, name := range s.declared {
			if _, ok := s.entries[canon]; !ok {
				attrs[name] = cty.NullVal(cty.String)
			}
		}
		for _, e := range s.entries {
			attrs[e.name] = e.value.Cty()
		}
	}
	if len(attrs) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(attrs)
}

// LogValue implements slog.LogValuer; secrets are redacted.
func (s *Set) LogValue() slog.Value {
	if s == nil {
		return slog.GroupValue()
	}
	attrs := make([]slog.Attr, 0, len(s.entries))
	for _, name := range s.Names() {
		v, _ := s.Lookup(name)
		attrs = append(attrs, slog.Any(name, v))
	}
	return slog.GroupValue(attrs...)
}
