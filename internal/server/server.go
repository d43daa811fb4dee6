// Package server implements the Dashboard: a thin HTTP/WebSocket front end
// over the Controller, Task Manager and Activity Filter.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/jobpilot/automation/internal/activityfilter"
	"github.com/jobpilot/automation/internal/controller"
	"github.com/jobpilot/automation/internal/metrics"
	"github.com/jobpilot/automation/internal/notifications"
	"github.com/jobpilot/automation/internal/tasks"
	"github.com/jobpilot/automation/internal/tracker"
	"github.com/jobpilot/automation/internal/types"
	"github.com/gorilla/mux"
)

// Server is the Dashboard's HTTP server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	hub        *Hub

	controller    *controller.Controller
	tasks         *tasks.Manager
	filter        *activityfilter.Filter
	notifier      *notifications.Manager
	metrics       *metrics.MetricsCollector
	alerts        *metrics.AlertChecker
	activityStats ActivityStatsSource

	// ShutdownChan is closed once, either by an operator's POST
	// /api/shutdown or by RequestShutdown, letting main's select loop do
	// an orderly exit instead of handling the signal itself.
	ShutdownChan chan struct{}

	startTime time.Time
}

// New wires a Dashboard over an already-constructed Controller, Task
// Manager, Activity Filter and notification manager. It owns the metrics
// Collector and Alert Engine and hands the Collector to the Controller so
// every search-and-apply flow updates per-platform throughput counters.
func New(ctrl *controller.Controller, taskMgr *tasks.Manager, filter *activityfilter.Filter, notifier *notifications.Manager) *Server {
	collector := metrics.NewCollector()
	ctrl.SetMetrics(collector)

	s := &Server{
		hub:          NewHub(),
		controller:   ctrl,
		tasks:        taskMgr,
		filter:       filter,
		notifier:     notifier,
		metrics:      collector,
		alerts:       metrics.NewAlertEngine(types.DefaultAlertThresholds()),
		ShutdownChan: make(chan struct{}),
		startTime:    time.Now(),
	}
	s.setupRoutes()
	return s
}

// Hub exposes the WebSocket hub so an eventbus.Handler can relay bus
// traffic to connected clients.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ActivityStatsSource exposes the Activity Log's in-memory per-action-type
// tallies to the Dashboard's /api/status endpoint. *tracker.Tracker
// satisfies this directly; nil disables the "stats" field in the response.
type ActivityStatsSource interface {
	Snapshot() map[string]tracker.ActionStats
}

// SetActivityStats wires the Activity Log whose running tallies should be
// surfaced alongside session state. Call once before Run/Start.
func (s *Server) SetActivityStats(src ActivityStatsSource) {
	s.activityStats = src
}

// RequestShutdown closes ShutdownChan; safe to call more than once.
func (s *Server) RequestShutdown() {
	select {
	case <-s.ShutdownChan:
	default:
		close(s.ShutdownChan)
	}
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()
	s.router.Use(SecurityHeadersMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleGetStatus).Methods(http.MethodGet)
	api.HandleFunc("/session/start", s.handleSessionStart).Methods(http.MethodPost)
	api.HandleFunc("/session/stop", s.handleSessionStop).Methods(http.MethodPost)
	api.HandleFunc("/session/pause", s.handleSessionPause).Methods(http.MethodPost)
	api.HandleFunc("/session/resume", s.handleSessionResume).Methods(http.MethodPost)
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodPost)
	api.HandleFunc("/activity", s.handleGetActivity).Methods(http.MethodGet)
	api.HandleFunc("/metrics", s.handleGetMetrics).Methods(http.MethodGet)
	api.HandleFunc("/shutdown", s.handleShutdown).Methods(http.MethodPost)

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Run starts the hub's broadcast loop; call once before Start.
func (s *Server) Run() {
	go s.hub.Run()
}

// Start listens and serves on addr, blocking until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
