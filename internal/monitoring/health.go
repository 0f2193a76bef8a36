package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/23skdu/longbow-seq2seq/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthStatus represents the health of a training run
type HealthStatus struct {
	Status    string        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    time.Duration `json:"uptime"`
	System    SystemInfo    `json:"system"`
	Training  TrainingInfo  `json:"training"`
	Alerts    []Alert       `json:"alerts"`
}

// SystemInfo contains system-level information
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Arch         string `json:"arch"`
	NumCPU       int    `json:"num_cpu"`
	MemoryMB     int    `json:"memory_mb"`
	MemoryUsedMB int    `json:"memory_used_mb"`
}

// TrainingInfo summarizes progress so far
type TrainingInfo struct {
	Epoch        int       `json:"epoch"`
	Steps        int       `json:"steps"`
	LastLoss     float64   `json:"last_loss"` // 0 when LossInvalid
	LossInvalid  bool      `json:"loss_invalid"`
	AvgLoss      float64   `json:"avg_loss"` // over the recent window
	AvgStepMs    float64   `json:"avg_step_ms"`
	NonFinite    int       `json:"non_finite"`
	LastStepTime time.Time `json:"last_step"`
}

// Alert represents a training alert
type Alert struct {
	Level      string     `json:"level"`     // info, warning, error, critical
	Component  string     `json:"component"` // training, system
	Message    string     `json:"message"`
	Timestamp  time.Time  `json:"timestamp"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// StepPoint is one recorded training step
type StepPoint struct {
	Loss     float64
	Duration time.Duration
}

const (
	historySize = 1000
	maxAlerts   = 100
)

// HealthMonitor tracks training progress and serves it over HTTP next to
// the Prometheus metrics.
type HealthMonitor struct {
	startTime time.Time
	server    *http.Server
	stopped   bool

	mu        sync.RWMutex
	alerts    []Alert
	history   []StepPoint
	epoch     int
	steps     int
	nonFinite int
	lastLoss  float64
	lastStep  time.Time
}

func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		startTime: time.Now(),
		alerts:    make([]Alert, 0),
		history:   make([]StepPoint, 0),
	}
}

// Handler serves /health, /healthz, /status, /metrics and the alert admin
// endpoints.
func (hm *HealthMonitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", hm.handleHealth)
	mux.HandleFunc("/healthz", hm.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", hm.handleDetailedStatus)
	mux.HandleFunc("/admin/alerts", hm.handleAlerts)
	mux.HandleFunc("/admin/clear-alerts", hm.handleClearAlerts)
	return mux
}

// Start blocks serving Handler on addr until Stop. After Stop it returns
// http.ErrServerClosed immediately.
func (hm *HealthMonitor) Start(addr string) error {
	hm.mu.Lock()
	if hm.stopped {
		hm.mu.Unlock()
		return http.ErrServerClosed
	}
	hm.server = &http.Server{
		Addr:         addr,
		Handler:      hm.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	srv := hm.server
	hm.mu.Unlock()

	logger.Log.Info("Health monitor starting", "addr", addr)
	return srv.ListenAndServe()
}

func (hm *HealthMonitor) Stop(ctx context.Context) error {
	hm.mu.Lock()
	hm.stopped = true
	srv := hm.server
	hm.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// RecordStep records one training step. A non-finite loss raises an error
// alert: training does not recover from it.
func (hm *HealthMonitor) RecordStep(loss float64, duration time.Duration) {
	hm.mu.Lock()
	hm.steps++
	hm.lastLoss = loss
	hm.lastStep = time.Now()
	hm.history = append(hm.history, StepPoint{Loss: loss, Duration: duration})
	if len(hm.history) > historySize {
		hm.history = hm.history[1:]
	}
	nonFinite := math.IsNaN(loss) || math.IsInf(loss, 0)
	if nonFinite {
		hm.nonFinite++
	}
	step := hm.steps
	hm.mu.Unlock()

	if nonFinite {
		hm.AddAlert("error", "training", fmt.Sprintf("Non-finite loss at step %d", step))
	}
}

func (hm *HealthMonitor) RecordEpoch(epoch int) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.epoch = epoch
}

func (hm *HealthMonitor) AddAlert(level, component, message string) {
	hm.mu.Lock()
	hm.alerts = append(hm.alerts, Alert{
		Level:     level,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
	})
	if len(hm.alerts) > maxAlerts {
		hm.alerts = hm.alerts[1:]
	}
	hm.mu.Unlock()

	logger.Log.Warn("Alert raised", "level", level, "component", component, "message", message)
}

func (hm *HealthMonitor) ResolveAlert(index int) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	if index >= 0 && index < len(hm.alerts) {
		now := time.Now()
		hm.alerts[index].Resolved = true
		hm.alerts[index].ResolvedAt = &now
	}
}

// Status snapshots the current health.
func (hm *HealthMonitor) Status() HealthStatus {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	status := "healthy"
	for _, alert := range hm.alerts {
		if alert.Resolved {
			continue
		}
		if alert.Level == "critical" {
			status = "critical"
			break
		}
		if alert.Level == "error" {
			status = "degraded"
		}
	}

	return HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Uptime:    time.Since(hm.startTime),
		System:    systemInfo(),
		Training:  hm.trainingInfo(),
		Alerts:    append([]Alert(nil), hm.alerts...),
	}
}

// HTTP Handlers

func (hm *HealthMonitor) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := hm.Status()

	w.Header().Set("Content-Type", "application/json")
	if status.Status == "healthy" {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(map[string]string{
		"status":    status.Status,
		"timestamp": status.Timestamp.Format(time.RFC3339),
	})
}

func (hm *HealthMonitor) handleDetailedStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(hm.Status())
}

func (hm *HealthMonitor) handleAlerts(w http.ResponseWriter, r *http.Request) {
	hm.mu.RLock()
	alerts := append([]Alert(nil), hm.alerts...)
	hm.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(alerts)
}

func (hm *HealthMonitor) handleClearAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hm.mu.Lock()
	hm.alerts = hm.alerts[:0]
	hm.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "alerts cleared"})
}

func systemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemInfo{
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		NumCPU:       runtime.NumCPU(),
		MemoryMB:     int(m.Sys / 1024 / 1024),
		MemoryUsedMB: int(m.Alloc / 1024 / 1024),
	}
}

// trainingInfo must be called with hm.mu held.
func (hm *HealthMonitor) trainingInfo() TrainingInfo {
	info := TrainingInfo{
		Epoch:        hm.epoch,
		Steps:        hm.steps,
		NonFinite:    hm.nonFinite,
		LastStepTime: hm.lastStep,
	}
	// encoding/json rejects NaN and Inf
	if math.IsNaN(hm.lastLoss) || math.IsInf(hm.lastLoss, 0) {
		info.LossInvalid = true
	} else {
		info.LastLoss = hm.lastLoss
	}
	if len(hm.history) == 0 {
		return info
	}

	var loss float64
	var total time.Duration
	finite := 0
	for _, p := range hm.history {
		total += p.Duration
		if math.IsNaN(p.Loss) || math.IsInf(p.Loss, 0) {
			continue
		}
		loss += p.Loss
		finite++
	}
	if finite > 0 {
		info.AvgLoss = loss / float64(finite)
	}
	info.AvgStepMs = float64(total.Nanoseconds()) / float64(len(hm.history)) / 1e6
	return info
}
