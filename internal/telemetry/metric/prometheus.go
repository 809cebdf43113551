package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "moeckpt"

// Restore results.
const (
	RestoreOK      = "restored"
	RestoreMissing = "missing"
	RestoreFailed  = "failed"
)

// Registry holds all application metrics.
type Registry struct {
	reg *prometheus.Registry

	SaveDuration  *prometheus.HistogramVec
	SaveFailures  *prometheus.CounterVec
	LastSuccess   *prometheus.GaugeVec
	SnapshotBytes *prometheus.GaugeVec
	Cycles        *prometheus.CounterVec
	Restores      *prometheus.CounterVec
}

// NewRegistry creates a registry with checkpoint metrics plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		SaveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "save_duration_seconds",
			Help:      "Time to snapshot, write and promote one component.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"component"}),
		SaveFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "save_failures_total",
			Help:      "Failed component saves.",
		}, []string{"component"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last promoted snapshot.",
		}, []string{"component"}),
		SnapshotBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_bytes",
			Help:      "Size of the last promoted snapshot file.",
		}, []string{"component"}),
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Save cycles by result (ok, partial).",
		}, []string{"result"}),
		Restores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restores_total",
			Help:      "Restore attempts by component and result.",
		}, []string{"component", "result"}),
	}

	r.reg.MustRegister(
		r.SaveDuration,
		r.SaveFailures,
		r.LastSuccess,
		r.SnapshotBytes,
		r.Cycles,
		r.Restores,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// MustRegister adds extra collectors.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	if r == nil {
		return
	}
	r.reg.MustRegister(cs...)
}

// ObserveSave records the outcome of one component save.
func (r *Registry) ObserveSave(component string, elapsed time.Duration, size int64, err error) {
	if r == nil {
		return
	}
	r.SaveDuration.WithLabelValues(component).Observe(elapsed.Seconds())
	if err != nil {
		r.SaveFailures.WithLabelValues(component).Inc()
		return
	}
	r.LastSuccess.WithLabelValues(component).SetToCurrentTime()
	r.SnapshotBytes.WithLabelValues(component).Set(float64(size))
}

// ObserveCycle records a finished save cycle.
func (r *Registry) ObserveCycle(failed int) {
	if r == nil {
		return
	}
	result := "ok"
	if failed > 0 {
		result = "partial"
	}
	r.Cycles.WithLabelValues(result).Inc()
}

// ObserveRestore records one component restore attempt.
func (r *Registry) ObserveRestore(component, result string) {
	if r == nil {
		return
	}
	r.Restores.WithLabelValues(component, result).Inc()
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Gatherer(), promhttp.HandlerOpts{})
}
