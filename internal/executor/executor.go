// Package executor runs a validated plan strictly in order, one target at a
// time, and stops at the first failure.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/vk/buildgrid/internal/buildctx"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/inmemorystore"
	"github.com/vk/buildgrid/internal/notify"
	"github.com/vk/buildgrid/internal/params"
	"github.com/vk/buildgrid/internal/requirement"
	"github.com/vk/buildgrid/internal/statestore"
	"github.com/vk/buildgrid/internal/target"
)

// Outcome is the final state of one planned target.
type Outcome struct {
	Target   string
	State    target.State
	Err      error
	Note     string
	Started  time.Time
	Duration time.Duration
}

// Result summarises a build. Outcomes lists every planned target in plan
// order; targets that never started remain Pending or Validated.
type Result struct {
	BuildID      string
	Succeeded    bool
	Outcomes     []Outcome
	FailedTarget string
	Err          error
}

// Executor runs plans. It is not safe to run two plans on one Executor at
// the same time.
type Executor struct {
	store statestore.Store
	sink  notify.Sink
}

// New creates an Executor. A nil store gets an in-memory one and a nil sink
// discards events.
func New(store statestore.Store, sink notify.Sink) *Executor {
	if store == nil {
		store = inmemorystore.New()
	}
	if sink == nil {
		sink = notify.Nop{}
	}
	return &Executor{store: store, sink: sink}
}

// Store exposes the state store, e.g. for the status server.
func (e *Executor) Store() statestore.Store { return e.store }

// Run validates every requirement of the plan and, only if all are met,
// runs each target in order. The returned error equals Result.Err.
func (e *Executor) Run(ctx context.Context, plan *dag.Plan, bctx *buildctx.Context) (*Result, error) {
	ctx, logger := ctxlog.With(ctx, "build_id", bctx.ID())
	r := &run{
		Executor: e,
		bctx:     bctx,
		redactor: params.NewRedactor(bctx.Params().Secrets()),
		res:      &Result{BuildID: bctx.ID()},
	}

	if err := e.store.Init(ctx, plan.Names()); err != nil {
		return r.finish(ctx, fmt.Errorf("failed to initialise state store: %w", err))
	}
	r.publish(ctx, notify.Event{Kind: notify.BuildStarted, Goals: plan.Goals})

	if err := requirement.Validate(ctx, plan.Targets, bctx); err != nil {
		return r.finish(ctx, err)
	}
	for _, t := range plan.Targets {
		if _, err := e.store.Transition(ctx, t.Name(), target.StateValidated, nil); err != nil {
			return r.finish(ctx, err)
		}
	}

	logger.Info("🚀 Starting build.", "targets", plan.Len(), "order", plan.Names())
	for _, t := range plan.Targets {
		if err := ctx.Err(); err != nil {
			logger.Warn("Build interrupted.", "next", t.Name())
			return r.finish(ctx, &InterruptedError{Next: t.Name(), Err: err})
		}
		if err := r.runTarget(ctx, t); err != nil {
			r.res.FailedTarget = t.Name()
			return r.finish(ctx, err)
		}
	}

	r.res.Succeeded = true
	return r.finish(ctx, nil)
}

// run holds the state of one Executor.Run call.
type run struct {
	*Executor
	bctx     *buildctx.Context
	redactor *params.Redactor
	res      *Result
}

// runTarget moves one target through Running to a terminal state.
func (r *run) runTarget(ctx context.Context, t *target.Target) error {
	name := t.Name()
	ctx, logger := ctxlog.With(ctx, "target", name)

	if _, err := r.store.Transition(ctx, name, target.StateRunning, nil); err != nil {
		return err
	}
	r.publish(ctx, notify.Event{Kind: notify.TargetStarted, Target: name, State: target.StateRunning})
	logger.Info("▶ Running target.")

	actionErr := runAction(ctx, t, r.bctx)

	state := target.StateSucceeded
	var failure error
	if skip, ok := target.IsSkip(actionErr); ok {
		state = target.StateSkipped
		logger.Info("⏭ Target skipped.", "reason", skip.Reason)
	} else if actionErr != nil {
		state = target.StateFailed
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(actionErr, ctxErr) {
			actionErr = fmt.Errorf("%w (interrupted: %w)", actionErr, ctxErr)
		}
		failure = &ActionFailure{Target: name, Err: actionErr}
	}

	rec, err := r.store.Transition(ctx, name, state, actionErr)
	if err != nil {
		return err
	}

	ev := notify.Event{Kind: notify.TargetFinished, Target: name, State: state, Duration: rec.Duration()}
	if failure != nil {
		ev.Error = r.redactor.Redact(actionErr.Error())
		logger.Error("✖ Target failed.", "duration", rec.Duration(), "error", ev.Error)
	} else if state == target.StateSucceeded {
		logger.Info("✔ Target succeeded.", "duration", rec.Duration())
	}
	r.publish(ctx, ev)
	return failure
}

// runAction invokes the action, converting a panic into a *PanicError.
func runAction(ctx context.Context, t *target.Target, bctx *buildctx.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()
	return t.Run(ctx, bctx)
}

// finish fills the outcomes from the store and publishes the final event.
func (r *run) finish(ctx context.Context, err error) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	r.res.Err = err

	records, serr := r.store.Snapshot(ctx)
	if serr != nil {
		logger.Warn("Failed to read target states.", "error", serr)
	}
	for _, rec := range records {
		o := Outcome{Target: rec.Target, State: rec.State, Err: rec.Err, Started: rec.Started, Duration: rec.Duration()}
		if skip, ok := target.IsSkip(rec.Err); ok {
			o.Err, o.Note = nil, skip.Reason
		}
		r.res.Outcomes = append(r.res.Outcomes, o)
	}

	ev := notify.Event{Kind: notify.BuildFinished, State: target.StateSucceeded}
	if r.res.Succeeded {
		logger.Info("🏁 Build succeeded.", "targets", len(r.res.Outcomes))
	} else {
		ev.State = target.StateFailed
		ev.Target = r.res.FailedTarget
		if err != nil {
			ev.Error = r.redactor.Redact(err.Error())
		}
		logger.Error("🏁 Build failed.", "failed_target", r.res.FailedTarget, "error", ev.Error)
	}
	r.publish(ctx, ev)
	return r.res, err
}

func (r *run) publish(ctx context.Context, ev notify.Event) {
	ev.BuildID = r.bctx.ID()
	ev.Time = time.Now()
	if err := r.sink.Publish(ctx, ev); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to publish build event.", "kind", string(ev.Kind), "error", err)
	}
}
