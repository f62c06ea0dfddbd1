package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	CacheLookups   *prometheus.CounterVec
	Fallbacks      *prometheus.CounterVec
	ProcessRuns    *prometheus.CounterVec
	LLMRequests    *prometheus.CounterVec
	SweptFiles     *prometheus.CounterVec
	SegmentLatency prometheus.Histogram
}

// New registers the service instruments on a dedicated registry
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Content-addressed cache lookups by result.",
		}, []string{"result"}),
		Fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lipsync_fallbacks_total",
			Help:      "Schematic lipsync fallbacks by the stage that failed.",
		}, []string{"reason"}),
		ProcessRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_runs_total",
			Help:      "External tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		LLMRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Language model requests by outcome.",
		}, []string{"outcome"}),
		SweptFiles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_files_total",
			Help:      "Files removed by the retention sweeper by directory.",
		}, []string{"dir"}),
		SegmentLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "segment_processing_ms",
			Help:      "Time to produce audio and lipsync for one reply segment in milliseconds.",
			Buckets:   []float64{5, 50, 250, 500, 1000, 2000, 4000, 8000, 15000},
		}),
	}
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) Fallback(reason string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) ProcessRun(tool string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ProcessRuns.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) LLMRequest(outcome string) {
	if m == nil {
		return
	}
	m.LLMRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Swept(dir string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SweptFiles.WithLabelValues(dir).Add(float64(n))
}

func (m *Metrics) ObserveSegment(d time.Duration) {
	if m == nil {
		return
	}
	m.SegmentLatency.Observe(float64(d.Milliseconds()))
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
