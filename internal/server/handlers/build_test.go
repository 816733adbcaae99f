package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/appbuilder/internal/builder"
)

type fakeRunner struct {
	result   builder.Result
	requests []*builder.BuildRequest
}

func (r *fakeRunner) Run(_ context.Context, _ string, req *builder.BuildRequest) builder.Result {
	r.requests = append(r.requests, req)
	return r.result
}

func newTestHandlers(runner *fakeRunner) (*BuildHandlers, *StatusTracker) {
	tracker := NewStatusTracker()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewBuildHandlers("s3cret", runner, tracker, nil, logger)
	h.dispatch = func(fn func()) { fn() } // run inline for deterministic tests
	return h, tracker
}

func requestBody(overrides map[string]any) string {
	body := map[string]any{
		"email":          "student@example.com",
		"secret":         "s3cret",
		"task":           "quiz-app",
		"round":          1,
		"nonce":          "ab12",
		"brief":          "Build a quiz app",
		"checks":         []string{"has questions"},
		"evaluation_url": "https://eval.example.com/notify",
	}
	for k, v := range overrides {
		if v == nil {
			delete(body, k)
			continue
		}
		body[k] = v
	}
	b, _ := json.Marshal(body)
	return string(b)
}

func postBuild(h *BuildHandlers, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api-endpoint", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleBuildRequest(rec, req)
	return rec
}

func TestBuildRequestAccepted(t *testing.T) {
	runner := &fakeRunner{result: builder.Result{
		OK: true, Outcome: builder.OutcomeCreated, ReportedRound: 1,
		RepoURL: "https://github.com/o/app-quiz-app", CommitSHA: "abc",
	}}
	h, tracker := newTestHandlers(runner)

	rec := postBuild(h, requestBody(nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp BuildAcceptedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	assert.Equal(t, "quiz-app", resp.Task)
	assert.NotEmpty(t, resp.BuildID)

	require.Len(t, runner.requests, 1)
	assert.Equal(t, "Build a quiz app", runner.requests[0].Brief)

	status := tracker.Get("ab12")
	require.NotNil(t, status)
	assert.Equal(t, StateCompleted, status.Status)
	assert.Equal(t, string(builder.OutcomeCreated), status.Outcome)
}

func TestBuildRequestInvalidSecret(t *testing.T) {
	runner := &fakeRunner{}
	h, _ := newTestHandlers(runner)

	rec := postBuild(h, requestBody(map[string]any{"secret": "wrong"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, runner.requests, "rejected request must not reach the orchestrator")
}

func TestSecretRotationTakesEffect(t *testing.T) {
	runner := &fakeRunner{result: builder.Result{OK: true, Outcome: builder.OutcomeCreated, ReportedRound: 1}}
	h, _ := newTestHandlers(runner)

	assert.Equal(t, http.StatusAccepted, postBuild(h, requestBody(nil)).Code)

	h.SetSecret("rotated")
	assert.Equal(t, http.StatusForbidden, postBuild(h, requestBody(nil)).Code,
		"old secret must stop working after rotation")
	assert.Equal(t, http.StatusAccepted, postBuild(h, requestBody(map[string]any{"secret": "rotated"})).Code)

	require.Len(t, runner.requests, 2)
}

func TestBuildRequestValidation(t *testing.T) {
	cases := []struct {
		name      string
		overrides map[string]any
	}{
		{"missing email", map[string]any{"email": nil}},
		{"email without at sign", map[string]any{"email": "not-an-address"}},
		{"missing task", map[string]any{"task": nil}},
		{"round out of range", map[string]any{"round": 3}},
		{"missing nonce", map[string]any{"nonce": nil}},
		{"missing brief", map[string]any{"brief": nil}},
		{"missing evaluation url", map[string]any{"evaluation_url": nil}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newTestHandlers(&fakeRunner{})
			rec := postBuild(h, requestBody(tc.overrides))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestBuildRequestMalformedBody(t *testing.T) {
	h, _ := newTestHandlers(&fakeRunner{})
	rec := postBuild(h, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuildRequestWrongMethod(t *testing.T) {
	h, _ := newTestHandlers(&fakeRunner{})
	req := httptest.NewRequest(http.MethodGet, "/api-endpoint", nil)
	rec := httptest.NewRecorder()
	h.HandleBuildRequest(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuildFailureTrackedAsFailed(t *testing.T) {
	runner := &fakeRunner{result: builder.Result{OK: false, Outcome: builder.OutcomeFailed}}
	h, tracker := newTestHandlers(runner)

	rec := postBuild(h, requestBody(nil))
	assert.Equal(t, http.StatusAccepted, rec.Code, "acceptance precedes the build outcome")

	status := tracker.Get("ab12")
	require.NotNil(t, status)
	assert.Equal(t, StateFailed, status.Status)
}
