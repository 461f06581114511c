package metrics

import (
	"fmt"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "postbuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	reg           *prom.Registry
	posts         *prom.CounterVec
	diagrams      *prom.CounterVec
	aggregates    *prom.CounterVec
	stageDuration *prom.HistogramVec
	buildDuration prom.Histogram
}

// NewPrometheusRecorder constructs and registers the build metrics on reg
// (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.once.Do(func() {
		pr.posts = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "posts_total",
			Help:      "Posts processed by result",
		}, []string{"result"})
		pr.diagrams = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "diagram_renders_total",
			Help:      "Diagram render requests by result",
		}, []string{"result"})
		pr.aggregates = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "aggregates_written_total",
			Help:      "Aggregate artifacts written by kind",
		}, []string{"kind"})
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		})
		reg.MustRegister(pr.posts, pr.diagrams, pr.aggregates, pr.stageDuration, pr.buildDuration)
	})
	return pr
}

func (p *PrometheusRecorder) IncPostResult(result PostResult) {
	if p == nil || p.posts == nil {
		return
	}
	p.posts.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncDiagramResult(result DiagramResult) {
	if p == nil || p.diagrams == nil {
		return
	}
	p.diagrams.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncAggregateWritten(kind string) {
	if p == nil || p.aggregates == nil {
		return
	}
	p.aggregates.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

// WriteTextfile writes every metric in the recorder's registry to path in
// the text exposition format, for node_exporter's textfile collector.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prom.WriteToTextfile(path, p.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
