package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/vk/buildgrid/internal/buildctx"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/hclbuild"
	"github.com/vk/buildgrid/internal/inmemorystore"
	"github.com/vk/buildgrid/internal/invoker"
	"github.com/vk/buildgrid/internal/params"
	"github.com/vk/buildgrid/internal/registry"
)

// ErrConfig marks errors caused by the build files or the invocation rather
// than by running a target.
var ErrConfig = errors.New("configuration error")

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logW     io.WriteCloser
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	file     *hclbuild.BuildFile
	params   *params.Set
	host     buildctx.Host
	redactor *params.Redactor
	store    *inmemorystore.Store

	httpServer *http.Server
	status     atomic.Pointer[buildStatus]
}

// NewApp loads the build files named by cfg, resolves parameters and
// registers every target, together with any modules defined in code.
// Logs, command output and reports are written to outW.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	a := &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: registry.New(),
		host:     buildctx.DetectHost(cfg.Environ),
		store:    inmemorystore.New(),
	}

	if len(cfg.Files) == 0 && len(modules) == 0 {
		return nil, fmt.Errorf("%w: no build file given and ./%s not found", ErrConfig, DefaultFile)
	}

	var decls []params.Declaration
	if len(cfg.Files) > 0 {
		file, err := hclbuild.NewLoader().Load(ctx, cfg.Files...)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		decls, err = file.Declarations(a.host)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		a.file = file
		logger.Debug("Build files loaded.", "files", file.Files)
	}

	set, err := params.Resolve(decls, params.Sources{
		Files:       cfg.ParamsFiles,
		Environ:     cfg.Environ,
		Flags:       cfg.Params,
		SecretFlags: cfg.Secrets,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	a.params = set

	// From here on every log line is masked.
	a.redactor = params.NewRedactor(set.Secrets())
	a.logW = a.redactor.Writer(outW)
	a.logger = newLogger(cfg, a.logW)
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("Parameters resolved.", "params", set, "host_os", a.host.OS, "is_local", a.host.IsLocal)

	if err := a.registry.RegisterModules(a.modules(modules)...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	a.logger.Debug("All modules registered.", "targets", a.registry.Len())

	if err := a.registry.Validate(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return a, nil
}

// modules returns the build file module, if any, followed by the modules
// defined in code.
func (a *App) modules(extra []registry.Module) []registry.Module {
	var mods []registry.Module
	if a.file != nil {
		mods = append(mods, &hclbuild.Module{
			File:   a.file,
			Runner: invoker.Runner{Stdout: a.outW, Stderr: a.outW},
		})
	}
	return append(mods, extra...)
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Params returns the resolved parameters.
func (a *App) Params() *params.Set {
	return a.params
}

// Redact masks every secret parameter value in s.
func (a *App) Redact(s string) string {
	return a.redactor.Redact(s)
}

// Close flushes buffered log output.
func (a *App) Close() error {
	if a.logW == nil {
		return nil
	}
	return a.logW.Close()
}
