// Package metrics records pipeline phase outcomes and writes them in the
// node-exporter textfile format after each run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/hpcmaker/internal/provisioning"
)

var _ provisioning.PhaseRecorder = (*Recorder)(nil)

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultAborted = "aborted"
)

// Recorder holds the metrics of one hpcmaker invocation in a private registry.
type Recorder struct {
	registry *prometheus.Registry

	phaseTotal    *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	runTotal      *prometheus.CounterVec
	lastRun       *prometheus.GaugeVec
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		phaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hpcmaker",
				Subsystem: "pipeline",
				Name:      "phase_total",
				Help:      "Total number of pipeline phases by kind, phase and result",
			},
			[]string{"kind", "phase", "result"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "hpcmaker",
				Subsystem: "pipeline",
				Name:      "phase_duration_seconds",
				Help:      "Duration of pipeline phases in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 15), // 100ms to ~27min
			},
			[]string{"kind", "phase"},
		),
		runTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hpcmaker",
				Name:      "runs_total",
				Help:      "Total number of create and destroy runs by result",
			},
			[]string{"kind", "command", "result"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "hpcmaker",
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time of the last run by kind and command",
			},
			[]string{"kind", "command"},
		),
	}

	r.registry.MustRegister(r.phaseTotal, r.phaseDuration, r.runTotal, r.lastRun)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObservePhase records one phase outcome.
func (r *Recorder) ObservePhase(kind, phase string, d time.Duration, err error) {
	r.phaseTotal.WithLabelValues(kind, phase, Result(err)).Inc()
	r.phaseDuration.WithLabelValues(kind, phase).Observe(d.Seconds())
}

// ObserveRun records the outcome of a whole create or destroy run.
func (r *Recorder) ObserveRun(kind, command string, at time.Time, err error) {
	r.runTotal.WithLabelValues(kind, command, Result(err)).Inc()
	r.lastRun.WithLabelValues(kind, command).Set(float64(at.Unix()))
}

// WriteTextfile writes all metrics to path for the node-exporter textfile
// collector. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
