// Package socketio publishes build events to a socket.io server, for live
// dashboards that follow a build as it runs.
package socketio

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/notify"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultEvent is the socket.io event name used when Config.Event is empty.
const DefaultEvent = "build_event"

// ErrNotConnected is returned by Publish after the connection dropped.
var ErrNotConnected = errors.New("socket.io client is not connected")

// Config describes the endpoint to publish to.
type Config struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// Sink is a notify.Sink backed by a socket.io client.
type Sink struct {
	event      string
	emit       func(event string, data map[string]any)
	connected  func() bool
	disconnect func()
}

var _ notify.Sink = (*Sink)(nil)

// Dial connects to cfg.URL and waits until the connection is established,
// ctx is done or the connect timeout elapses.
func Dial(ctx context.Context, cfg Config) (*Sink, error) {
	logger := ctxlog.FromContext(ctx).With("sink", "socketio", "url", cfg.URL)
	logger.Debug("Connecting event sink...")

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("events URL must be absolute: %s", cfg.URL)
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "/"
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Event sink connected", "sid", io.Id())
		select {
		case connectChan <- nil:
		default:
		}
	})

	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, ok := errs[0].(error)
		if !ok {
			err = fmt.Errorf("%v", errs[0])
		}
		logger.Debug("Event sink connect_error", "error", err)
		select {
		case connectChan <- err:
		default:
		}
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}

	return newSink(cfg.Event,
		func(event string, data map[string]any) { io.Emit(event, data) },
		io.Connected,
		func() { io.Disconnect() },
	), nil
}

func newSink(event string, emit func(string, map[string]any), connected func() bool, disconnect func()) *Sink {
	if event == "" {
		event = DefaultEvent
	}
	return &Sink{event: event, emit: emit, connected: connected, disconnect: disconnect}
}

// Publish emits e as a JSON object.
func (s *Sink) Publish(ctx context.Context, e notify.Event) error {
	if !s.connected() {
		return ErrNotConnected
	}
	s.emit(s.event, e.Map())
	return nil
}

// Close disconnects the client.
func (s *Sink) Close() error {
	s.disconnect()
	return nil
}
