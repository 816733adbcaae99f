package handlers

import (
	"log/slog"
	"net/http"
	"time"

	apperrors "git.home.luguber.info/inful/appbuilder/internal/errors"
	"git.home.luguber.info/inful/appbuilder/internal/logfields"
	"git.home.luguber.info/inful/appbuilder/internal/version"
)

// MonitoringHandlers serves the root, health, and per-nonce status endpoints.
type MonitoringHandlers struct {
	tracker      *StatusTracker
	startTime    time.Time
	errorAdapter *apperrors.HTTPErrorAdapter
	logger       *slog.Logger
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Uptime    float64   `json:"uptime_seconds"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMonitoringHandlers creates monitoring endpoint handlers.
func NewMonitoringHandlers(tracker *StatusTracker, logger *slog.Logger) *MonitoringHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &MonitoringHandlers{
		tracker:      tracker,
		startTime:    time.Now(),
		errorAdapter: apperrors.NewHTTPErrorAdapter(logger),
		logger:       logger,
	}
}

// HandleRoot confirms deployment.
func (h *MonitoringHandlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if err := writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "deployed": true}); err != nil {
		h.logger.Error("failed to write root response", logfields.Error(err))
	}
}

// HandleHealth is the liveness endpoint.
func (h *MonitoringHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Version:   version.Version,
		Uptime:    time.Since(h.startTime).Seconds(),
		Timestamp: time.Now().UTC(),
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("failed to write health response", logfields.Error(err))
	}
}

// HandleStatus is GET /status/{nonce}: the tracked state of one request.
func (h *MonitoringHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	nonce := r.PathValue("nonce")
	if nonce == "" {
		h.errorAdapter.WriteErrorResponse(w, apperrors.ValidationError("nonce is required"))
		return
	}

	status := h.tracker.Get(nonce)
	if status == nil {
		_ = writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown nonce", "nonce": nonce})
		return
	}

	if err := writeJSON(w, http.StatusOK, status); err != nil {
		h.logger.Error("failed to write status response", logfields.Error(err))
	}
}
