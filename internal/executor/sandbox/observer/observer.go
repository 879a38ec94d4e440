// Package observer defines metrics hooks for sandbox execution.
package observer

import (
	"context"
	"time"

	"execsvc/internal/executor/sandbox/result"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder records sandbox metrics.
type MetricsRecorder interface {
	ObserveStart(ctx context.Context, payloadBytes int)
	ObserveRun(ctx context.Context, outcome result.Outcome, duration time.Duration)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) ObserveStart(context.Context, int) {}
func (Nop) ObserveRun(context.Context, result.Outcome, time.Duration) {}

// Prometheus records executions into a prometheus registry.
type Prometheus struct {
	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	payload    prometheus.Histogram
	inflight   prometheus.Gauge
}

// NewPrometheus creates the collectors and registers them on reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "executor_executions_total",
			Help: "Executions by terminal outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "executor_execution_duration_seconds",
			Help:    "Wall time of one execution.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),
		payload: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "executor_payload_bytes",
			Help:    "Size of decoded executables.",
			Buckets: prometheus.ExponentialBuckets(64, 4, 10),
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "executor_inflight",
			Help: "Executions currently running.",
		}),
	}
	for _, c := range []prometheus.Collector{p.executions, p.duration, p.payload, p.inflight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) ObserveStart(_ context.Context, payloadBytes int) {
	p.inflight.Inc()
	p.payload.Observe(float64(payloadBytes))
}

func (p *Prometheus) ObserveRun(_ context.Context, outcome result.Outcome, duration time.Duration) {
	p.inflight.Dec()
	p.executions.WithLabelValues(string(outcome)).Inc()
	p.duration.WithLabelValues(string(outcome)).Observe(duration.Seconds())
}
