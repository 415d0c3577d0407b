// Package metrics exposes pipeline run instrumentation via Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	SinkWritesTotal *prometheus.CounterVec
	VersioningTotal *prometheus.CounterVec
	RunDuration     prometheus.Summary
}

// New registers the pipeline metrics on reg. Pass prometheus.NewRegistry()
// in tests to avoid default-registry collisions.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apod_pipeline",
			Name:      "runs_total",
			Help:      "Number of pipeline runs by status",
		}, []string{"status"}),
		SinkWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apod_pipeline",
			Name:      "sink_writes_total",
			Help:      "Number of sink write attempts by sink and status",
		}, []string{"sink", "status"}),
		VersioningTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apod_pipeline",
			Name:      "versioning_total",
			Help:      "Number of versioning step outcomes by step and status",
		}, []string{"step", "status"}),
		RunDuration: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace: "apod_pipeline",
			Name:      "run_duration_seconds",
			Help:      "Time spent on one pipeline run",
		}),
	}

	reg.MustRegister(m.RunsTotal, m.SinkWritesTotal, m.VersioningTotal, m.RunDuration)

	return m
}

// Handler serves the metrics from reg.
func Handler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
