// Package params resolves the named configuration values a build runs with.
//
// Values are merged from, lowest precedence first: declaration defaults,
// parameter files, the process environment and command-line flags. A value
// that is secret at any layer stays secret and is never rendered by String
// or LogValue.
package params

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// ErrMalformedAssignment is returned for a flag that is not of the form key=value.
var ErrMalformedAssignment = errors.New("parameter must be of the form key=value")

// Declaration describes a parameter the build knows about.
type Declaration struct {
	Name        string
	Description string
	Secret      bool
	// EnvVar overrides the environment variable consulted for this
	// parameter. When empty, any variable whose canonical name matches is used.
	EnvVar  string
	Default cty.Value
}

// Sources lists the raw inputs to Resolve.
type Sources struct {
	Files       []string
	Environ     []string
	Flags       []string
	SecretFlags []string
}

// Resolve merges all sources into an immutable Set.
func Resolve(decls []Declaration, src Sources) (*Set, error) {
	set := Empty()
	secret := map[string]bool{}

	for _, d := range decls {
		canon := Canonical(d.Name)
		if prev, dup := set.declared[canon]; dup {
			return nil, fmt.Errorf("parameter '%s' is declared more than once (also as '%s')", d.Name, prev)
		}
		set.declared[canon] = d.Name
		if d.Secret {
			secret[canon] = true
		}
		if d.Default != cty.NilVal && !d.Default.IsNull() {
			set.put(d.Name, NewValue(d.Default, false, SourceDefault))
		}
	}

	for _, path := range src.Files {
		values, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		for name, v := range values {
			set.put(name, NewValue(v, false, SourceFile))
		}
	}

	env := envIndex(src.Environ)
	for _, d := range decls {
		if d.EnvVar != "" {
			if v, ok := env.exact[d.EnvVar]; ok {
				set.put(d.Name, StringValue(v, false, SourceEnv))
			}
			continue
		}
		if v, ok := env.canonical[Canonical(d.Name)]; ok {
			set.put(d.Name, StringValue(v, false, SourceEnv))
		}
	}

	for _, kv := range src.Flags {
		name, v, err := splitAssignment(kv)
		if err != nil {
			return nil, err
		}
		set.put(name, StringValue(v, false, SourceFlag))
	}
	for _, kv := range src.SecretFlags {
		name, v, err := splitAssignment(kv)
		if err != nil {
			return nil, err
		}
		secret[Canonical(name)] = true
		set.put(name, StringValue(v, true, SourceFlag))
	}

	for canon, e := range set.entries {
		if secret[canon] && !e.value.secret {
			e.value.secret = true
			set.entries[canon] = e
		}
	}
	return set, nil
}

// put stores v under name, preferring the declared spelling of the name.
func (s *Set) put(name string, v Value) {
	canon := Canonical(name)
	if declared, ok := s.declared[canon]; ok {
		name = declared
	}
	if prev, ok := s.entries[canon]; ok && prev.value.secret {
		v.secret = true
	}
	s.entries[canon] = entry{name: name, value: v}
}

func splitAssignment(kv string) (string, string, error) {
	name, v, ok := strings.Cut(kv, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		// Only the key is echoed; the value may be a secret.
		return "", "", fmt.Errorf("%w: '%s'", ErrMalformedAssignment, name)
	}
	return name, v, nil
}

type environment struct {
	exact     map[string]string
	canonical map[string]string
}

func envIndex(environ []string) environment {
	env := environment{exact: map[string]string{}, canonical: map[string]string{}}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env.exact[k] = v
		env.canonical[Canonical(k)] = v
	}
	return env
}
