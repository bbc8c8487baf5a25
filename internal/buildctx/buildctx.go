// Package buildctx defines the read-only context handed to every target
// action and requirement predicate during one build invocation.
package buildctx

import (
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vk/buildgrid/internal/params"
)

// ciVariables are environment variables whose presence marks a build as
// running on a build server rather than a developer machine.
var ciVariables = []string{"CI", "TF_BUILD", "GITHUB_ACTIONS", "JENKINS_URL", "TEAMCITY_VERSION", "GITLAB_CI", "BUILD_SERVER"}

// Host describes the machine the build runs on.
type Host struct {
	OS      string
	IsLocal bool
}

// DetectHost inspects environ (os.Environ form) and the running platform.
func DetectHost(environ []string) Host {
	set := make(map[string]bool, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && v != "" {
			set[k] = true
		}
	}
	local := true
	for _, name := range ciVariables {
		if set[name] {
			local = false
			break
		}
	}
	return Host{OS: runtime.GOOS, IsLocal: local}
}

// Context is immutable after New returns. Its accessors copy slices so that
// actions cannot alter what later targets observe.
type Context struct {
	id      string
	goals   []string
	params  *params.Set
	host    Host
	started time.Time
}

// New creates a Context with a fresh build ID.
func New(goals []string, p *params.Set, host Host) *Context {
	if p == nil {
		p = params.Empty()
	}
	return &Context{
		id:      uuid.NewString(),
		goals:   append([]string(nil), goals...),
		params:  p,
		host:    host,
		started: time.Now(),
	}
}

func (c *Context) ID() string               { return c.id }
func (c *Context) Params() *params.Set      { return c.params }
func (c *Context) Host() Host               { return c.host }
func (c *Context) Started() time.Time       { return c.started }
func (c *Context) Goals() []string          { return append([]string(nil), c.goals...) }
func (c *Context) Param(name string) string { return c.params.String(name) }

// LogValue implements slog.LogValuer.
func (c *Context) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("build_id", c.id),
		slog.Any("goals", c.goals),
		slog.String("os", c.host.OS),
		slog.Bool("is_local", c.host.IsLocal),
		slog.Any("params", c.params),
	)
}
