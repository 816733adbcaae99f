package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once                sync.Once
	buildDuration       prom.Histogram
	stageDuration       *prom.HistogramVec
	buildOutcome        *prom.CounterVec
	generationFallbacks prom.Counter
	notifyResults       *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "appbuilder",
			Name:      "build_duration_seconds",
			Help:      "Total build duration from acceptance to notification",
			Buckets:   prom.DefBuckets,
		})
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "appbuilder",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "appbuilder",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"})
		pr.generationFallbacks = prom.NewCounter(prom.CounterOpts{
			Namespace: "appbuilder",
			Name:      "generation_fallbacks_total",
			Help:      "Builds where generation failed and the fallback page was published",
		})
		pr.notifyResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "appbuilder",
			Name:      "notify_results_total",
			Help:      "Evaluation notification results by delivery outcome",
		}, []string{"result"})
		reg.MustRegister(pr.buildDuration, pr.stageDuration, pr.buildOutcome, pr.generationFallbacks, pr.notifyResults)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncGenerationFallback() {
	if p == nil || p.generationFallbacks == nil {
		return
	}
	p.generationFallbacks.Inc()
}

func (p *PrometheusRecorder) IncNotifyResult(delivered bool) {
	if p == nil || p.notifyResults == nil {
		return
	}
	res := "failed"
	if delivered {
		res = "delivered"
	}
	p.notifyResults.WithLabelValues(res).Inc()
}
