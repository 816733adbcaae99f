package metrics

import "time"

// Recorder defines observability hooks for build and stage metrics. Implementations
// may forward to Prometheus, OpenTelemetry, etc. All methods must be safe for nil receivers
// when using the NoopRecorder (allowing optional injection).
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	ObserveStageDuration(stage string, d time.Duration)
	IncBuildOutcome(outcome string) // outcome: created|revised|created_fallback|failed
	IncGenerationFallback()
	IncNotifyResult(delivered bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncBuildOutcome(string)                     {}
func (NoopRecorder) IncGenerationFallback()                     {}
func (NoopRecorder) IncNotifyResult(bool)                       {}
