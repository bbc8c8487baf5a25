package app

import (
	"context"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/notify"
	"github.com/vk/buildgrid/internal/notify/socketio"
)

// newSink returns the sinks build events are published to. An events
// endpoint that cannot be reached is logged and skipped.
func (a *App) newSink(ctx context.Context) notify.Sink {
	logger := ctxlog.FromContext(ctx)
	sinks := notify.Multi{notify.LogSink{}}
	if a.config.EventsURL == "" {
		return sinks
	}

	s, err := socketio.Dial(ctx, socketio.Config{
		URL:            a.config.EventsURL,
		ConnectTimeout: a.config.EventsTimeout,
	})
	if err != nil {
		logger.Warn("Build events will not be published.", "url", a.config.EventsURL, "error", err)
		return sinks
	}
	logger.Info("📡 Publishing build events.", "url", a.config.EventsURL)
	return append(sinks, s)
}
