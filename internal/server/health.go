// Package server implements health check handlers.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Phase is the stage an export run is in.
type Phase string

const (
	PhaseStarting  Phase = "starting"
	PhaseExporting Phase = "exporting"
	PhaseDone      Phase = "done"
	PhaseFailed    Phase = "failed"
)

// ExportHealth reports the state of one export run to the health endpoints.
// The process is live until the run fails and ready while it is exporting
// or after it finished.
type ExportHealth struct {
	mu      sync.RWMutex
	phase   Phase
	source  string
	sink    string
	events  int64
	batches int
	err     error
}

// NewExportHealth creates a checker in the starting phase.
func NewExportHealth(source, sink string) *ExportHealth {
	return &ExportHealth{phase: PhaseStarting, source: source, sink: sink}
}

// SetPhase moves the run to phase.
func (h *ExportHealth) SetPhase(phase Phase) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.phase = phase
}

// Fail marks the run failed with err.
func (h *ExportHealth) Fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.phase = PhaseFailed
	h.err = err
}

// Record stores the latest totals.
func (h *ExportHealth) Record(events int64, batches int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = events
	h.batches = batches
}

// Phase returns the current phase.
func (h *ExportHealth) Phase() Phase {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.phase
}

// Liveness reports false once the run failed.
func (h *ExportHealth) Liveness() bool {
	return h.Phase() != PhaseFailed
}

// Readiness reports whether the run is exporting or finished.
func (h *ExportHealth) Readiness(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	p := h.Phase()
	return p == PhaseExporting || p == PhaseDone
}

// IsHealthy reports whether the run has not failed.
func (h *ExportHealth) IsHealthy() bool {
	return h.Liveness()
}

// GetStatus returns the run state as string checks.
func (h *ExportHealth) GetStatus() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := map[string]string{
		"phase":   string(h.phase),
		"source":  h.source,
		"sink":    h.sink,
		"events":  strconv.FormatInt(h.events, 10),
		"batches": strconv.Itoa(h.batches),
	}
	if h.err != nil {
		status["error"] = h.err.Error()
	}
	return status
}

// LivenessHandler returns a handler for Kubernetes liveness probes.
// Liveness probes should only fail if the process needs to be restarted.
func LivenessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "alive"
		statusCode := http.StatusOK

		if !checker.Liveness() {
			status = "not alive"
			statusCode = http.StatusServiceUnavailable
		}

		writeHealth(w, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}, logger)
	}
}

// ReadinessHandler returns a handler for Kubernetes readiness probes.
// The checks map carries the export phase and totals.
func ReadinessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ready"
		statusCode := http.StatusOK

		if !checker.Readiness(r.Context()) {
			status = "not ready"
			statusCode = http.StatusServiceUnavailable
		}

		writeHealth(w, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checker.GetStatus(),
		}, logger)
	}
}

func writeHealth(w http.ResponseWriter, statusCode int, response HealthResponse, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("failed to encode health response", "error", err)
	}
}
