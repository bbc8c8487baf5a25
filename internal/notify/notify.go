// Package notify publishes build progress events to observers such as the
// log or a remote dashboard. Publishing is best effort: a failing sink never
// changes the outcome of a build.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/target"
)

// Kind identifies the type of an Event.
type Kind string

const (
	BuildStarted   Kind = "build_started"
	TargetStarted  Kind = "target_started"
	TargetFinished Kind = "target_finished"
	BuildFinished  Kind = "build_finished"
)

// Event describes one step of a build.
type Event struct {
	BuildID  string
	Kind     Kind
	Goals    []string
	Target   string
	State    target.State
	Error    string
	Duration time.Duration
	Time     time.Time
}

// Map renders the event as a JSON-friendly map.
func (e Event) Map() map[string]any {
	m := map[string]any{
		"build_id": e.BuildID,
		"kind":     string(e.Kind),
		"time":     e.Time.UTC().Format(time.RFC3339Nano),
	}
	if len(e.Goals) > 0 {
		m["goals"] = e.Goals
	}
	if e.Target != "" {
		m["target"] = e.Target
	}
	if e.State != "" {
		m["state"] = string(e.State)
	}
	if e.Error != "" {
		m["error"] = e.Error
	}
	if e.Duration > 0 {
		m["duration_ms"] = e.Duration.Milliseconds()
	}
	return m
}

// Sink receives events.
type Sink interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// LogSink writes events to the context logger at debug level.
type LogSink struct{}

func (LogSink) Publish(ctx context.Context, e Event) error {
	logger := ctxlog.FromContext(ctx)
	args := []any{"kind", string(e.Kind), "build_id", e.BuildID}
	if e.Target != "" {
		args = append(args, "target", e.Target)
	}
	if e.State != "" {
		args = append(args, "state", string(e.State))
	}
	if e.Duration > 0 {
		args = append(args, "duration", e.Duration)
	}
	logger.Debug("Build event.", args...)
	return nil
}

func (LogSink) Close() error { return nil }

// Multi fans events out to every sink.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
