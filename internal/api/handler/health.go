package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/iconidentify/xreply/internal/scheduler"
	"github.com/iconidentify/xreply/internal/service"
)

var startTime = time.Now()

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store     Pinger
	sessions  *service.SessionManager
	events    *service.EventService
	scheduler *scheduler.Scheduler
}

// NewHealthHandler creates a new health handler. Every dependency but store
// may be nil.
func NewHealthHandler(store Pinger, sessions *service.SessionManager, events *service.EventService, sched *scheduler.Scheduler) *HealthHandler {
	return &HealthHandler{
		store:     store,
		sessions:  sessions,
		events:    events,
		scheduler: sched,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "error",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Error:     "settings store unreachable",
		})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// SystemStats contains process statistics.
type SystemStats struct {
	Uptime        int64               `json:"uptime_seconds"`
	UptimeHuman   string              `json:"uptime_human"`
	MemAllocMB    int64               `json:"mem_alloc_mb"`
	MemSysMB      int64               `json:"mem_sys_mb"`
	MemHeapMB     int64               `json:"mem_heap_mb"`
	NumGoroutines int                 `json:"num_goroutines"`
	NumCPU        int                 `json:"num_cpu"`
	Sessions      int                 `json:"sessions"`
	Events        *service.EventStats `json:"events,omitempty"`
	Jobs          []scheduler.JobInfo `json:"jobs,omitempty"`
}

// Stats handles GET /api/v1/stats - system statistics.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime)
	stats := SystemStats{
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   formatUptime(uptime),
		MemAllocMB:    int64(m.Alloc / 1024 / 1024),
		MemSysMB:      int64(m.Sys / 1024 / 1024),
		MemHeapMB:     int64(m.HeapAlloc / 1024 / 1024),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
	}
	if h.sessions != nil {
		stats.Sessions = h.sessions.Count()
	}
	if h.events != nil {
		es := h.events.Stats()
		stats.Events = &es
	}
	if h.scheduler != nil {
		stats.Jobs = h.scheduler.ListJobs()
	}

	writeJSON(w, http.StatusOK, stats)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
