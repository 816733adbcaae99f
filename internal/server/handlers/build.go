package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/appbuilder/internal/builder"
	apperrors "git.home.luguber.info/inful/appbuilder/internal/errors"
	"git.home.luguber.info/inful/appbuilder/internal/events"
	"git.home.luguber.info/inful/appbuilder/internal/logfields"
)

// BuildRunner executes one build; the handler dispatches it asynchronously.
type BuildRunner interface {
	Run(ctx context.Context, buildID string, req *builder.BuildRequest) builder.Result
}

// BuildHandlers accepts build requests and hands them to the orchestrator
// as background work.
type BuildHandlers struct {
	// secret holds the shared secret as a string; rotated in place when
	// the configuration file is reloaded.
	secret       atomic.Value
	runner       BuildRunner
	tracker      *StatusTracker
	emitter      events.Emitter
	errorAdapter *apperrors.HTTPErrorAdapter
	logger       *slog.Logger

	// dispatch runs fn in the background; replaced in tests to run inline.
	dispatch func(fn func())
}

// BuildAcceptedResponse is returned immediately on acceptance; the build
// itself runs in the background.
type BuildAcceptedResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Task      string    `json:"task"`
	Round     int       `json:"round"`
	Nonce     string    `json:"nonce"`
	BuildID   string    `json:"build_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBuildHandlers creates the build endpoint handlers.
func NewBuildHandlers(secret string, runner BuildRunner, tracker *StatusTracker, emitter events.Emitter, logger *slog.Logger) *BuildHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	h := &BuildHandlers{
		runner:       runner,
		tracker:      tracker,
		emitter:      emitter,
		errorAdapter: apperrors.NewHTTPErrorAdapter(logger),
		logger:       logger,
		dispatch:     func(fn func()) { go fn() },
	}
	h.secret.Store(secret)
	return h
}

// SetSecret replaces the shared secret used to authenticate build
// requests. Requests already past the check keep the value they read.
func (h *BuildHandlers) SetSecret(secret string) {
	h.secret.Store(secret)
}

// HandleBuildRequest is POST /api-endpoint: validate, authenticate,
// accept, and dispatch the build as one background unit of work.
func (h *BuildHandlers) HandleBuildRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		err := apperrors.ValidationError("invalid HTTP method").
			WithContext("method", r.Method).
			WithContext("allowed_method", "POST")
		h.errorAdapter.WriteErrorResponse(w, err)
		return
	}

	var req builder.BuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorAdapter.WriteErrorResponse(w, apperrors.ValidationError("malformed request body"))
		return
	}

	if err := validateRequest(&req); err != nil {
		h.errorAdapter.WriteErrorResponse(w, err)
		return
	}

	expected, _ := h.secret.Load().(string)
	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(expected)) != 1 {
		h.logger.Error("invalid secret provided", slog.String("email", req.Email))
		h.errorAdapter.WriteErrorResponse(w, apperrors.AuthError("invalid secret"))
		return
	}

	buildID := uuid.NewString()
	h.logger.Info("build request accepted",
		logfields.BuildID(buildID),
		logfields.Task(req.Task),
		logfields.Round(req.Round),
		logfields.Nonce(req.Nonce))

	h.tracker.Accept(req.Nonce, req.Task, req.Round)
	if err := h.emitter.Emit(&events.BuildEvent{
		Type: events.TypeBuildAccepted, BuildID: buildID,
		Task: req.Task, Round: req.Round, Nonce: req.Nonce,
	}); err != nil {
		h.logger.Warn("event publish failed", logfields.Error(err))
	}

	h.dispatch(func() {
		h.tracker.Building(req.Nonce)
		res := h.runner.Run(context.Background(), buildID, &req)
		h.tracker.Finish(req.Nonce, res)
	})

	resp := BuildAcceptedResponse{
		Status:    "accepted",
		Message:   "Request accepted and processing started",
		Task:      req.Task,
		Round:     req.Round,
		Nonce:     req.Nonce,
		BuildID:   buildID,
		Timestamp: time.Now().UTC(),
	}
	if err := writeJSON(w, http.StatusAccepted, resp); err != nil {
		h.logger.Error("failed to write acceptance response", logfields.Error(err))
	}
}

func validateRequest(req *builder.BuildRequest) *apperrors.BuilderError {
	switch {
	case req.Email == "":
		return apperrors.ValidationError("email is required")
	case !strings.Contains(req.Email, "@"):
		return apperrors.ValidationError("email is not a valid address").WithContext("email", req.Email)
	case req.Task == "":
		return apperrors.ValidationError("task is required")
	case req.Round != 1 && req.Round != 2:
		return apperrors.ValidationError("round must be 1 or 2").WithContext("round", req.Round)
	case req.Nonce == "":
		return apperrors.ValidationError("nonce is required")
	case req.Brief == "":
		return apperrors.ValidationError("brief is required")
	case req.EvaluationURL == "":
		return apperrors.ValidationError("evaluation_url is required")
	}
	return nil
}
