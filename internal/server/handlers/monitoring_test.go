package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/appbuilder/internal/builder"
)

func newMonitoring() (*MonitoringHandlers, *StatusTracker) {
	tracker := NewStatusTracker()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMonitoringHandlers(tracker, logger), tracker
}

func TestHandleRoot(t *testing.T) {
	h, _ := newMonitoring()
	rec := httptest.NewRecorder()
	h.HandleRoot(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["deployed"])
}

func TestHandleRootUnknownPath(t *testing.T) {
	h, _ := newMonitoring()
	rec := httptest.NewRecorder()
	h.HandleRoot(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	h, _ := newMonitoring()
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestHandleStatusLifecycle(t *testing.T) {
	h, tracker := newMonitoring()
	tracker.Accept("n1", "quiz-app", 2)
	tracker.Building("n1")
	tracker.Finish("n1", builder.Result{
		OK: true, Outcome: builder.OutcomeCreatedAsFallback, ReportedRound: 1,
		RepoURL: "https://github.com/o/app-quiz-app",
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status/{nonce}", h.HandleStatus)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/n1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var status BuildStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, StateCompleted, status.Status)
	assert.Equal(t, string(builder.OutcomeCreatedAsFallback), status.Outcome)
	assert.Equal(t, 1, status.Round, "fallback builds report round 1")
}

func TestHandleStatusUnknownNonce(t *testing.T) {
	h, _ := newMonitoring()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status/{nonce}", h.HandleStatus)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/ghost", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
