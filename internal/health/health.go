// Package health derives camera status from heartbeats and reports the
// health of the service.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmuteeullah/CamWatch/internal/camera"
	"github.com/mmuteeullah/CamWatch/internal/config"
)

// Status represents the health check status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CameraHealth is one camera's entry in the health report.
type CameraHealth struct {
	ID       camera.ID     `json:"id"`
	Name     string        `json:"name"`
	Status   camera.Status `json:"status"`
	LastSeen *time.Time    `json:"last_seen,omitempty"`
}

// SystemHealth represents process resource health
type SystemHealth struct {
	MemoryUsed  uint64 `json:"memory_used_bytes"`
	MemoryTotal uint64 `json:"memory_total_bytes"`
	Uptime      int64  `json:"uptime_seconds"`
	GoRoutines  int    `json:"goroutines"`
}

// HealthResponse represents the complete health check response
type HealthResponse struct {
	Status     Status          `json:"status"`
	Timestamp  time.Time       `json:"timestamp"`
	Version    string          `json:"version"`
	Uptime     string          `json:"uptime"`
	System     SystemHealth    `json:"system"`
	Cameras    []CameraHealth  `json:"cameras"`
	Heartbeats int64           `json:"heartbeats"`
	LastCheck  *time.Time      `json:"last_check,omitempty"`
	Checks     map[string]bool `json:"checks"`
	Messages   []string        `json:"messages,omitempty"`
}

// CheckFunc reports whether an optional dependency is usable.
type CheckFunc func(ctx context.Context) error

// Monitor is the heartbeat watchdog.
type Monitor struct {
	store    Store
	notifier Notifier
	cfg      config.MonitorConfig
	version  string
	logger   zerolog.Logger
	now      func() time.Time

	mu           sync.RWMutex
	startTime    time.Time
	lastCheck    time.Time
	lastCheckErr error
	heartbeats   int64
	checks       map[string]CheckFunc
}

// NewMonitor creates a watchdog over st. notifier may be nil.
func NewMonitor(version string, st Store, notifier Notifier, cfg config.MonitorConfig, logger zerolog.Logger) *Monitor {
	return &Monitor{
		store:     st,
		notifier:  notifier,
		cfg:       cfg,
		version:   version,
		logger:    logger,
		now:       time.Now,
		startTime: time.Now(),
	}
}

// GetSystemHealth returns current process metrics
func (m *Monitor) GetSystemHealth() SystemHealth {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return SystemHealth{
		MemoryUsed:  memStats.Alloc,
		MemoryTotal: memStats.Sys,
		GoRoutines:  runtime.NumGoroutine(),
		Uptime:      int64(time.Since(m.startTime).Seconds()),
	}
}

// RegisterCheck adds a named check to every report. A failing check marks
// the service degraded, not unhealthy.
func (m *Monitor) RegisterCheck(name string, check CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checks == nil {
		m.checks = make(map[string]CheckFunc)
	}
	m.checks[name] = check
}

// Report performs a complete health check
func (m *Monitor) Report(ctx context.Context) HealthResponse {
	m.mu.RLock()
	lastCheck, lastErr, heartbeats := m.lastCheck, m.lastCheckErr, m.heartbeats
	names := make([]string, 0, len(m.checks))
	checks := make(map[string]CheckFunc, len(m.checks))
	for name, check := range m.checks {
		names = append(names, name)
		checks[name] = check
	}
	m.mu.RUnlock()
	sort.Strings(names)

	response := HealthResponse{
		Timestamp:  m.now(),
		Version:    m.version,
		Uptime:     time.Since(m.startTime).Truncate(time.Second).String(),
		System:     m.GetSystemHealth(),
		Cameras:    make([]CameraHealth, 0),
		Heartbeats: heartbeats,
		Checks:     make(map[string]bool),
		Messages:   make([]string, 0),
	}
	if !lastCheck.IsZero() {
		response.LastCheck = &lastCheck
	}

	dbOK := m.store.Ping(ctx) == nil
	response.Checks["database"] = dbOK
	response.Checks["watchdog"] = lastErr == nil

	cameras, err := m.store.ListCameras(ctx, true)
	if err != nil {
		dbOK = false
		response.Checks["database"] = false
	}

	online := 0
	for _, cam := range cameras {
		response.Cameras = append(response.Cameras, CameraHealth{
			ID: cam.ID, Name: cam.Name, Status: cam.Status, LastSeen: cam.LastSeen,
		})
		if cam.Status == camera.StatusOnline {
			online++
		}
	}
	allOnline := online == len(cameras)
	response.Checks["cameras_online"] = allOnline

	var failed []string
	for _, name := range names {
		err := checks[name](ctx)
		response.Checks[name] = err == nil
		if err != nil {
			failed = append(failed, name+": "+err.Error())
		}
	}

	switch {
	case !dbOK:
		response.Status = StatusUnhealthy
		response.Messages = append(response.Messages, "Database not reachable")
	case lastErr != nil:
		response.Status = StatusDegraded
		response.Messages = append(response.Messages, "Last watchdog check failed: "+lastErr.Error())
	case len(failed) > 0:
		response.Status = StatusDegraded
		response.Messages = append(response.Messages, failed...)
	case !allOnline:
		response.Status = StatusDegraded
		response.Messages = append(response.Messages, "Some cameras are not online")
	default:
		response.Status = StatusHealthy
	}

	return response
}

// HTTPHandler returns an HTTP handler for health checks
func (m *Monitor) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := m.Report(r.Context())

		statusCode := http.StatusOK
		if health.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}

		if r.URL.Query().Get("detail") == "true" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(statusCode)
			json.NewEncoder(w).Encode(health)
			return
		}

		w.WriteHeader(statusCode)
		if health.Status == StatusHealthy {
			w.Write([]byte("ok"))
		} else {
			w.Write([]byte(string(health.Status)))
		}
	}
}
