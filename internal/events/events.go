// Package events publishes build lifecycle events for external
// consumers. Publishing is optional; when disabled the service runs
// with a no-op emitter.
package events

import "time"

// Event types emitted over the build lifecycle.
const (
	TypeBuildAccepted  = "build.accepted"
	TypeBuildCompleted = "build.completed"
	TypeBuildFailed    = "build.failed"
)

// BuildEvent describes a lifecycle transition of one build.
type BuildEvent struct {
	Type      string    `json:"type"`
	BuildID   string    `json:"build_id"`
	Task      string    `json:"task"`
	Round     int       `json:"round"`
	Nonce     string    `json:"nonce"`
	Outcome   string    `json:"outcome,omitempty"`
	RepoURL   string    `json:"repo_url,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Emitter publishes build lifecycle events.
type Emitter interface {
	Emit(event *BuildEvent) error
	Close() error
}

// NoopEmitter discards all events.
type NoopEmitter struct{}

func (NoopEmitter) Emit(*BuildEvent) error { return nil }
func (NoopEmitter) Close() error           { return nil }
