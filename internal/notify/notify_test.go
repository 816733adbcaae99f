package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newInstantNotifier(maxAttempts int, delays *[]time.Duration) *Notifier {
	n := NewNotifier(maxAttempts, 5*time.Second, discardLogger())
	n.sleep = func(_ context.Context, d time.Duration) error {
		if delays != nil {
			*delays = append(*delays, d)
		}
		return nil
	}
	return n
}

func testPayload() Payload {
	return Payload{
		Email:     "student@example.com",
		Task:      "quiz-app",
		Round:     1,
		Nonce:     "ab12",
		RepoURL:   "https://github.com/o/app-quiz-app",
		CommitSHA: "abc123",
		PagesURL:  "https://o.github.io/app-quiz-app/",
	}
}

func TestNotifySuccessFirstAttempt(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := newInstantNotifier(5, nil)
	ok := n.Notify(context.Background(), srv.URL, testPayload())
	assert.True(t, ok)
	assert.Equal(t, "quiz-app", got.Task)
	assert.Equal(t, "abc123", got.CommitSHA)
}

func TestNotifyRetriesWithExponentialDelays(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var delays []time.Duration
	n := newInstantNotifier(5, &delays)
	ok := n.Notify(context.Background(), srv.URL, testPayload())
	assert.True(t, ok)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, delays)
}

func TestNotifyNon200IsFailure(t *testing.T) {
	// a 202 is not acceptance: only 200 counts
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := newInstantNotifier(3, nil)
	ok := n.Notify(context.Background(), srv.URL, testPayload())
	assert.False(t, ok)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNotifyExhaustionReturnsFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var delays []time.Duration
	n := newInstantNotifier(4, &delays)
	ok := n.Notify(context.Background(), srv.URL, testPayload())
	assert.False(t, ok)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, delays)
}

func TestNotifyUnreachableEndpoint(t *testing.T) {
	n := newInstantNotifier(2, nil)
	ok := n.Notify(context.Background(), "http://127.0.0.1:1/notify", testPayload())
	assert.False(t, ok)
}

func TestNotifyCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	n := NewNotifier(5, time.Second, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok := n.Notify(ctx, srv.URL, testPayload())
	assert.False(t, ok)
}
