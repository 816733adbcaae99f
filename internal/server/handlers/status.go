package handlers

import (
	"sync"
	"time"

	"git.home.luguber.info/inful/appbuilder/internal/builder"
)

// Build states reported by the status endpoint.
const (
	StateAccepted  = "accepted"
	StateBuilding  = "building"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// BuildStatus is the tracked state of one accepted request, keyed by nonce.
type BuildStatus struct {
	Nonce     string    `json:"nonce"`
	Task      string    `json:"task"`
	Round     int       `json:"round"`
	Status    string    `json:"status"`
	Outcome   string    `json:"outcome,omitempty"`
	RepoURL   string    `json:"repo_url,omitempty"`
	PagesURL  string    `json:"pages_url,omitempty"`
	CommitSHA string    `json:"commit_sha,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusTracker keeps in-memory per-nonce build state. State is
// process-scoped; durable history lives in the store.
type StatusTracker struct {
	mu      sync.RWMutex
	entries map[string]*BuildStatus
}

// NewStatusTracker creates an empty tracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{entries: map[string]*BuildStatus{}}
}

// Accept records a newly accepted request.
func (t *StatusTracker) Accept(nonce, task string, round int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[nonce] = &BuildStatus{
		Nonce: nonce, Task: task, Round: round,
		Status: StateAccepted, Timestamp: time.Now(),
	}
}

// Building marks a request as in progress.
func (t *StatusTracker) Building(nonce string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.entries[nonce]; ok {
		s.Status = StateBuilding
		s.Timestamp = time.Now()
	}
}

// Finish records the terminal state of a build from its result.
func (t *StatusTracker) Finish(nonce string, res builder.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.entries[nonce]
	if !ok {
		return
	}
	if res.OK {
		s.Status = StateCompleted
	} else {
		s.Status = StateFailed
	}
	s.Outcome = string(res.Outcome)
	s.RepoURL = res.RepoURL
	s.PagesURL = res.PagesURL
	s.CommitSHA = res.CommitSHA
	if res.ReportedRound > 0 {
		s.Round = res.ReportedRound
	}
	s.Timestamp = time.Now()
}

// Get returns the tracked status for a nonce, or nil when unknown.
func (t *StatusTracker) Get(nonce string) *BuildStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.entries[nonce]
	if !ok {
		return nil
	}
	copied := *s
	return &copied
}
