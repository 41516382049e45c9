package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder counts and times store operations. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry
	ops      *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates a Recorder backed by its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wlog",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Store operations by operation and collection.",
		}, []string{"op", "collection"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wlog",
			Subsystem: "store",
			Name:      "failures_total",
			Help:      "Failed store operations by operation and collection.",
		}, []string{"op", "collection"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wlog",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Store operation latency.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"op"}),
	}
	r.registry.MustRegister(r.ops, r.failures, r.duration)
	return r
}

// Observe records one finished operation started at start.
func (r *Recorder) Observe(op, collection string, start time.Time, err error) {
	if r == nil {
		return
	}
	r.ops.WithLabelValues(op, collection).Inc()
	if err != nil {
		r.failures.WithLabelValues(op, collection).Inc()
	}
	r.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Registry exposes the underlying registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// WriteTextfile dumps the current metrics in the text exposition format,
// suitable for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile %s: %w", path, err)
	}
	return nil
}
