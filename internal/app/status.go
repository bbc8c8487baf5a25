package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/vk/buildgrid/internal/ctxlog"
)

// buildStatus identifies the build currently reported by /status.
type buildStatus struct {
	id    string
	goals []string
}

type statusTarget struct {
	Name     string     `json:"name"`
	State    string     `json:"state"`
	Error    string     `json:"error,omitempty"`
	Started  *time.Time `json:"started,omitempty"`
	Finished *time.Time `json:"finished,omitempty"`
}

type statusResponse struct {
	BuildID string         `json:"build_id"`
	Goals   []string       `json:"goals"`
	Targets []statusTarget `json:"targets"`
}

// healthHandler answers liveness probes.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// statusHandler reports the state of every planned target.
func (a *App) statusHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Status endpoint hit.", "remote_addr", r.RemoteAddr)

	resp := statusResponse{Goals: []string{}, Targets: []statusTarget{}}
	if st := a.status.Load(); st != nil {
		resp.BuildID, resp.Goals = st.id, st.goals
	}

	records, err := a.store.Snapshot(r.Context())
	if err != nil {
		http.Error(w, "failed to read target states", http.StatusInternalServerError)
		return
	}
	for _, rec := range records {
		st := statusTarget{Name: rec.Target, State: string(rec.State)}
		if rec.Err != nil {
			st.Error = a.redactor.Redact(rec.Err.Error())
		}
		if !rec.Started.IsZero() {
			started := rec.Started
			st.Started = &started
		}
		if !rec.Finished.IsZero() {
			finished := rec.Finished
			st.Finished = &finished
		}
		resp.Targets = append(resp.Targets, st)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		a.logger.Warn("Failed to write status response.", "error", err)
	}
}

func (a *App) statusMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/status", a.statusHandler)
	return mux
}

// startStatusServer starts the status server in the background. Failing to
// bind is logged and the build goes on without it.
func (a *App) startStatusServer(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	if a.config.StatusPort <= 0 {
		logger.Debug("Status server not started: disabled")
		return
	}

	addr := fmt.Sprintf(":%d", a.config.StatusPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Warn("Status server not started.", "address", addr, "error", err)
		return
	}

	a.httpServer = &http.Server{
		Handler:           a.statusMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("🩺 Status server starting", "address", fmt.Sprintf("http://localhost%s/status", addr))
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server failed unexpectedly", "error", err)
		}
	}()
}

func (a *App) closeStatusServer(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	if a.httpServer == nil {
		return
	}

	// The build context may already be cancelled; shutdown still gets its grace period.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	logger.Debug("🩺 Shutting down status server...")
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logger.Error("Status server shutdown failed", "error", err)
		return
	}
	a.httpServer = nil
	logger.Debug("Status server shut down gracefully.")
}
