package target

import (
	"fmt"
	"strings"

	"github.com/vk/buildgrid/internal/buildctx"
)

// Requirement is a precondition evaluated against the build context before
// any target runs. A Check that returns an error counts as not met.
type Requirement struct {
	Description string
	// Param names the parameter the predicate inspects, if any.
	Param string
	Check func(bctx *buildctx.Context) (bool, error)
}

// Require wraps a plain boolean predicate.
func Require(description string, fn func(bctx *buildctx.Context) bool) Requirement {
	return Requirement{
		Description: description,
		Check: func(bctx *buildctx.Context) (bool, error) {
			return fn(bctx), nil
		},
	}
}

// ParamSet requires that the parameter has a value.
func ParamSet(name string) Requirement {
	return Requirement{
		Description: fmt.Sprintf("parameter '%s' is set", name),
		Param:       name,
		Check: func(bctx *buildctx.Context) (bool, error) {
			return bctx.Params().IsSet(name), nil
		},
	}
}

// ParamNotEmpty requires that the parameter has a non-blank value.
func ParamNotEmpty(name string) Requirement {
	return Requirement{
		Description: fmt.Sprintf("parameter '%s' is not empty", name),
		Param:       name,
		Check: func(bctx *buildctx.Context) (bool, error) {
			return strings.TrimSpace(bctx.Param(name)) != "", nil
		},
	}
}

// ParamEquals requires a case-insensitive match against want.
func ParamEquals(name, want string) Requirement {
	return Requirement{
		Description: fmt.Sprintf("parameter '%s' equals '%s'", name, want),
		Param:       name,
		Check: func(bctx *buildctx.Context) (bool, error) {
			return strings.EqualFold(bctx.Param(name), want), nil
		},
	}
}
