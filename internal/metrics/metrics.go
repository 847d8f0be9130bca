// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Observer receives pipeline events
type Observer interface {
	StageRows(stage string, rows int)
	RowsDropped(stage string, rows int)
	Fallback(table, kind string)
	RunFinished(status string, d time.Duration)
}

// Nop ignores every event
type Nop struct{}

func (Nop) StageRows(string, int)             {}
func (Nop) RowsDropped(string, int)           {}
func (Nop) Fallback(string, string)           {}
func (Nop) RunFinished(string, time.Duration) {}

// Recorder is an Observer backed by a private Prometheus registry
type Recorder struct {
	registry  *prometheus.Registry
	stageRows *prometheus.GaugeVec
	dropped   *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	duration  prometheus.Histogram
	runs      *prometheus.CounterVec
}

// NewRecorder registers the pipeline collectors on a fresh registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cessation_stage_rows",
			Help: "Rows remaining after each pipeline stage in the last run.",
		}, []string{"stage"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cessation_rows_dropped_total",
			Help: "Respondent rows excluded, by exclusion stage.",
		}, []string{"stage"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cessation_fallbacks_total",
			Help: "Reference tables replaced by a builtin dataset or skipped.",
		}, []string{"table", "kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cessation_run_duration_seconds",
			Help:    "Wall time of pipeline runs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cessation_runs_total",
			Help: "Pipeline runs by final status.",
		}, []string{"status"}),
	}
	r.registry.MustRegister(r.stageRows, r.dropped, r.fallbacks, r.duration, r.runs,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return r
}

// Registry returns the registry the collectors live on
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) StageRows(stage string, rows int) {
	r.stageRows.WithLabelValues(stage).Set(float64(rows))
}

func (r *Recorder) RowsDropped(stage string, rows int) {
	r.dropped.WithLabelValues(stage).Add(float64(rows))
}

func (r *Recorder) Fallback(table, kind string) {
	r.fallbacks.WithLabelValues(table, kind).Inc()
}

func (r *Recorder) RunFinished(status string, d time.Duration) {
	r.runs.WithLabelValues(status).Inc()
	r.duration.Observe(d.Seconds())
}
