package params

import (
	"log/slog"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Redacted is printed in place of a secret value.
const Redacted = "[REDACTED]"

// Source records where a parameter value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// Value is a single resolved parameter value.
type Value struct {
	val    cty.Value
	secret bool
	source Source
}

// NewValue wraps v. A cty.NilVal is stored as a null string.
func NewValue(v cty.Value, secret bool, source Source) Value {
	if v == cty.NilVal {
		v = cty.NullVal(cty.String)
	}
	return Value{val: v, secret: secret, source: source}
}

// StringValue is shorthand for a string-typed Value.
func StringValue(s string, secret bool, source Source) Value {
	return NewValue(cty.StringVal(s), secret, source)
}

// Cty returns the underlying cty value.
func (v Value) Cty() cty.Value {
	if v.val == cty.NilVal {
		return cty.NullVal(cty.String)
	}
	return v.val
}

func (v Value) IsSecret() bool { return v.secret }
func (v Value) Source() Source { return v.source }

// IsNull reports whether the value is absent.
func (v Value) IsNull() bool {
	return v.val == cty.NilVal || v.val.IsNull()
}

// Raw returns the value rendered as a plain string. Secrets are returned
// unredacted; callers must not log the result.
func (v Value) Raw() string {
	if v.IsNull() || !v.val.IsKnown() {
		return ""
	}
	if v.val.Type() == cty.String {
		return v.val.AsString()
	}
	if s, err := convert.Convert(v.val, cty.String); err == nil && s.IsKnown() && !s.IsNull() {
		return s.AsString()
	}
	b, err := ctyjson.Marshal(v.val, v.val.Type())
	if err != nil {
		return ""
	}
	return string(b)
}

// String implements fmt.Stringer and never exposes a secret.
func (v Value) String() string {
	if v.secret {
		return Redacted
	}
	return v.Raw()
}

// LogValue implements slog.LogValuer.
func (v Value) LogValue() slog.Value {
	return slog.StringValue(v.String())
}

// Canonical normalises a parameter name so that nuget-api-key,
// NUGET_API_KEY and NuGetApiKey all refer to the same parameter.
func Canonical(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch r {
		case '-', '_', '.', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
