package app

import (
	"context"
	"fmt"

	"github.com/vk/buildgrid/internal/buildctx"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/executor"
)

// Goals returns the goals a run builds: the configured ones, else the
// configured default goal, else the build file's default_goal.
func (a *App) Goals() []string {
	switch {
	case len(a.config.Goals) > 0:
		return a.config.Goals
	case a.config.DefaultGoal != "":
		return []string{a.config.DefaultGoal}
	case a.file != nil && a.file.DefaultGoal != "":
		return []string{a.file.DefaultGoal}
	}
	return nil
}

// Run executes the main application logic based on the provided configuration.
// With Plan or List set it only prints and returns a nil Result.
func (a *App) Run(ctx context.Context) (*executor.Result, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.List {
		a.printTargets()
		return nil, nil
	}

	goals := a.Goals()
	if len(goals) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrConfig, dag.ErrNoGoals)
	}

	a.logger.Debug("Building execution plan...", "goals", goals)
	plan, err := dag.Build(ctx, a.registry, goals)
	if err != nil {
		return nil, fmt.Errorf("failed to build execution plan: %w", err)
	}
	a.logger.Debug("Execution plan built.", "targets", plan.Len())

	if a.config.Plan {
		a.printPlan(plan)
		return nil, nil
	}

	a.startStatusServer(ctx)
	defer a.closeStatusServer(ctx)

	sink := a.newSink(ctx)
	defer func() {
		if err := sink.Close(); err != nil {
			a.logger.Warn("Failed to close event sink.", "error", err)
		}
	}()

	bctx := buildctx.New(plan.Goals, a.params, a.host)
	a.status.Store(&buildStatus{id: bctx.ID(), goals: bctx.Goals()})

	res, err := executor.New(a.store, sink).Run(ctx, plan, bctx)
	if res != nil {
		a.printSummary(res)
	}
	a.logger.Debug("App.Run method finished.")
	return res, err
}
