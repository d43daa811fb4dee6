package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jobpilot/automation/internal/activityfilter"
	"github.com/jobpilot/automation/internal/metrics"
	"github.com/jobpilot/automation/internal/tasks"
	"github.com/jobpilot/automation/internal/tracker"
	"github.com/jobpilot/automation/internal/types"
	"github.com/gorilla/websocket"
)

// MaxPayloadSize bounds request bodies handled by this Dashboard.
const MaxPayloadSize = 1 * 1024 * 1024 // 1MB

// SearchTimeout bounds how long a /api/search run is allowed to take
// before the Task Manager's own per-task timeout would have fired anyway.
const SearchTimeout = 10 * time.Minute

var allowedOrigins = initAllowedOrigins()

func initAllowedOrigins() []string {
	defaults := []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
	}

	if env := os.Getenv("JOBPILOT_ALLOWED_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				defaults = append(defaults, origin)
			}
		}
	}
	return defaults
}

func checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range allowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

var upgrader = websocket.Upgrader{
	CheckOrigin: checkWebSocketOrigin,
}

// statusResponse is the body of GET /api/status: the current session
// state plus whatever notification banner is currently showing.
type statusResponse struct {
	Session types.SessionState             `json:"session"`
	Banner  notificationsBannerState       `json:"banner"`
	Uptime  float64                        `json:"uptime_seconds"`
	Stats   map[string]tracker.ActionStats `json:"stats,omitempty"`
}

// notificationsBannerState avoids a direct struct alias so the JSON shape
// stays under this package's control even if notifications.BannerState
// grows fields the Dashboard doesn't want to expose.
type notificationsBannerState struct {
	Visible   bool      `json:"visible"`
	Message   string    `json:"message,omitempty"`
	Type      string    `json:"type,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// handleHealth is polled by the instance manager while a freshly spawned
// daemon is waiting to confirm its own HTTP listener came up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, map[string]interface{}{"status": "ok"})
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	banner := s.notifier.GetBannerState()
	resp := statusResponse{
		Session: s.controller.State(),
		Banner: notificationsBannerState{
			Visible:   banner.Visible,
			Message:   banner.Message,
			Type:      string(banner.Type),
			Timestamp: banner.Timestamp,
		},
		Uptime: time.Since(s.startTime).Seconds(),
	}
	if s.activityStats != nil {
		resp.Stats = s.activityStats.Snapshot()
	}
	s.respondJSON(w, resp)
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.StartSession(); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.hub.BroadcastState(s.controller.State())
	s.respondJSON(w, map[string]interface{}{"session": s.controller.State()})
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.EndSession(); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.hub.BroadcastState(s.controller.State())
	s.respondJSON(w, map[string]interface{}{"session": s.controller.State()})
}

func (s *Server) handleSessionPause(w http.ResponseWriter, r *http.Request) {
	s.controller.PauseSession()
	s.hub.BroadcastState(s.controller.State())
	s.respondJSON(w, map[string]interface{}{"session": s.controller.State()})
}

func (s *Server) handleSessionResume(w http.ResponseWriter, r *http.Request) {
	s.controller.ResumeSession()
	s.hub.BroadcastState(s.controller.State())
	s.respondJSON(w, map[string]interface{}{"session": s.controller.State()})
}

// searchRequest is the body of POST /api/search.
type searchRequest struct {
	Platform string `json:"platform"`
	JobTitle string `json:"job_title"`
	Location string `json:"location"`
}

// handleSearch enqueues a full search-and-apply flow through the Task
// Manager and returns immediately with the task's ID; the flow's retries
// and eventual result are only observable via the activity log and
// WebSocket broadcasts, not this response.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxPayloadSize)

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.JobTitle == "" {
		s.respondError(w, http.StatusBadRequest, "job_title is required")
		return
	}
	if req.Platform == "" {
		req.Platform = "linkedin"
	}

	task := s.tasks.Create(tasks.TypeJobSearch, 0, func(ctx context.Context) (interface{}, error) {
		return s.controller.RunPlatformFlow(ctx, req.Platform, req.JobTitle, req.Location)
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), SearchTimeout)
		defer cancel()
		if _, err := s.tasks.Run(ctx, task); err != nil {
			log.Printf("[dashboard] search task %s failed: %v", task.ID, err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	s.respondJSON(w, map[string]interface{}{"task_id": task.ID, "status": "accepted"})
}

// handleGetActivity serves GET /api/activity?category=&agent=&range=&q=
func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	q := activityfilter.Query{
		Category:   activityfilter.Category(valueOrDefault(r, "category", string(activityfilter.CategoryAll))),
		Agent:      r.URL.Query().Get("agent"),
		SearchText: r.URL.Query().Get("q"),
	}
	q.Range.Named = r.URL.Query().Get("range")

	records, err := s.filter.Apply(q)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load activity: %v", err))
		return
	}
	s.respondJSON(w, map[string]interface{}{"activity": records})
}

// handleGetMetrics serves GET /api/metrics: a snapshot of per-platform
// throughput and LLM spend, plus any alert currently raised by a
// threshold breach.
func (s *Server) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot := s.metrics.TakeSnapshot()
	alerts := s.alerts.CheckMetrics(snapshot.Platforms)
	health := s.metrics.HealthSnapshot("dashboard", metrics.DefaultTokenRate)

	s.respondJSON(w, map[string]interface{}{
		"snapshot": snapshot,
		"alerts":   alerts,
		"health":   health,
	})
}

// handleShutdown lets the jobpilot CLI's own -stop verb request a graceful
// exit over loopback HTTP instead of signalling the process directly.
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	if host != "127.0.0.1" && host != "::1" {
		s.respondError(w, http.StatusForbidden, "shutdown can only be requested from localhost")
		return
	}

	s.respondJSON(w, map[string]string{"status": "shutting_down"})
	s.RequestShutdown()
}

func valueOrDefault(r *http.Request, key, def string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return def
}

// handleWebSocket upgrades the connection and streams state, activity and
// alert broadcasts to this one client.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{hub: s.hub, conn: conn, send: make(chan []byte, WebSocketBufferSize)}
	s.hub.Register(client)

	data, _ := json.Marshal(types.WSMessage{
		Type: types.WSTypeStateUpdate,
		Data: s.controller.State(),
	})
	client.send <- data

	go client.readPump()
	go client.writePump()
}

func (s *Server) respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	log.Printf("[dashboard] HTTP %d: %s", status, message)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":     message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
