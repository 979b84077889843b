package handlers

import (
	"context"
	"net/http"

	"github.com/isdelr/user-api/internal/monitoring"
)

// HealthReporter is implemented by monitoring.HealthMonitor.
type HealthReporter interface {
	Report(ctx context.Context) monitoring.HealthReport
}

// HealthHandler exposes the store connectivity status.
type HealthHandler struct {
	monitor HealthReporter
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(monitor HealthReporter) *HealthHandler {
	return &HealthHandler{monitor: monitor}
}

// Get reports 200 when the last store probe succeeded and 503 otherwise.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	report := h.monitor.Report(r.Context())
	if !report.Store.Up {
		writeJSON(w, http.StatusServiceUnavailable, Envelope{
			Success: false,
			Message: "Store connection failed",
			Data:    report,
			Error:   report.Store.LastError,
		})
		return
	}
	writeData(w, http.StatusOK, "Store connection OK", report)
}
