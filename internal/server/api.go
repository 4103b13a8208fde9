package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/stackmesh/stackmesh/internal/monitor"
	"github.com/stackmesh/stackmesh/internal/resilience"
)

// API exposes the monitoring surface: health probes, resilience
// statistics, the bounded error and metric tables, and the SSE event
// stream.
type API struct {
	health  *HealthServer
	handler *resilience.Handler
	hub     *monitor.Hub
	log     *slog.Logger
}

// NewAPI wires the health server, resilience handler and event hub
// into one HTTP surface.
func NewAPI(version string, handler *resilience.Handler, hub *monitor.Hub, log *slog.Logger) *API {
	if log == nil {
		log = slog.Default()
	}
	health := NewHealthServer(&HealthConfig{Version: version})
	health.RegisterCheck("resilience", ResilienceHealthChecker(handler))
	return &API{
		health:  health,
		handler: handler,
		hub:     hub,
		log:     log,
	}
}

// Health returns the embedded health server for readiness control.
func (a *API) Health() *HealthServer {
	return a.health
}

// Handler returns the full monitoring mux.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	probes := a.health.Handler()
	for _, path := range []string{"/health", "/ready", "/live", "/healthz", "/readyz", "/livez"} {
		mux.Handle(path, probes)
	}
	mux.HandleFunc("/statistics", a.handleStatistics)
	mux.HandleFunc("/errors", a.handleErrors)
	mux.HandleFunc("/metrics", a.handleMetrics)
	mux.HandleFunc("/events", a.handleEvents)
	return mux
}

func (a *API) handleStatistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.handler.Statistics())
}

func (a *API) handleErrors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"errors": a.handler.Errors(),
	})
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"metrics": a.handler.Metrics(),
	})
}

// handleEvents upgrades the request to an SSE stream and blocks until
// the client disconnects.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	client, err := monitor.NewClient(a.hub, w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	a.hub.Register(client)
	defer a.hub.Unregister(client)
	a.log.Debug("event stream client connected", "remote", r.RemoteAddr)

	go client.KeepAlive(15 * time.Second)
	<-r.Context().Done()
	a.log.Debug("event stream client disconnected", "remote", r.RemoteAddr)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
