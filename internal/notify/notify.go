// Package notify delivers build completion callbacks to the evaluation
// endpoint supplied with each request.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/appbuilder/internal/logfields"
	"git.home.luguber.info/inful/appbuilder/internal/retry"
)

// Payload is the JSON body posted to the evaluation endpoint.
type Payload struct {
	Email     string `json:"email"`
	Task      string `json:"task"`
	Round     int    `json:"round"`
	Nonce     string `json:"nonce"`
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}

// Notifier posts completion payloads with exponential backoff between
// attempts. Only an HTTP 200 response counts as delivered.
type Notifier struct {
	client      *http.Client
	logger      *slog.Logger
	maxAttempts int
	sleep       func(context.Context, time.Duration) error
}

// NewNotifier builds a notifier with the given attempt budget and
// per-request timeout.
func NewNotifier(maxAttempts int, timeout time.Duration, logger *slog.Logger) *Notifier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
		maxAttempts: maxAttempts,
		sleep:       sleepCtx,
	}
}

// Notify posts the payload to url, retrying with delays of 1, 2, 4, ...
// seconds between attempts. It reports whether delivery succeeded;
// exhausting the attempt budget is logged but never returned as an error.
func (n *Notifier) Notify(ctx context.Context, url string, payload Payload) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("marshal notification payload", logfields.Error(err))
		return false
	}

	policy := retry.NotifyPolicy(n.maxAttempts)
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := n.sleep(ctx, policy.Delay(attempt-1)); err != nil {
				n.logger.Warn("notification abandoned",
					logfields.Task(payload.Task),
					logfields.Nonce(payload.Nonce),
					logfields.Error(err))
				return false
			}
		}

		err := n.post(ctx, url, body)
		if err == nil {
			n.logger.Info("evaluation endpoint notified",
				logfields.Task(payload.Task),
				logfields.Round(payload.Round),
				logfields.Nonce(payload.Nonce),
				logfields.Attempt(attempt))
			return true
		}

		n.logger.Warn("notification attempt failed",
			logfields.Task(payload.Task),
			logfields.Nonce(payload.Nonce),
			logfields.Attempt(attempt),
			logfields.Error(err))
	}

	n.logger.Error("notification attempts exhausted",
		logfields.Task(payload.Task),
		logfields.Round(payload.Round),
		logfields.Nonce(payload.Nonce),
		slog.Int("max_attempts", n.maxAttempts))
	return false
}

func (n *Notifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("evaluation endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
