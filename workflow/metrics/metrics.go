// Package metrics exposes Prometheus collectors for the executor and
// scheduler: in-flight step concurrency, ready-queue depth, per-step
// latency, candidate-failover retries, and skip-cascade counts. All
// metrics are namespaced "flowgraph_".
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the metrics a single process-wide registry exposes.
// Labels carry run_id/step_name so a scrape can break latency and retry
// counts down per workflow run and per step.
type Collector struct {
	inflightSteps *prometheus.GaugeVec
	queueDepth    *prometheus.GaugeVec
	stepLatency   *prometheus.HistogramVec
	modelRetries  *prometheus.CounterVec
	stepsSkipped  *prometheus.CounterVec

	enabled bool
}

// New registers the executor's metrics with registry. Pass nil to use
// prometheus.DefaultRegisterer.
func New(registry prometheus.Registerer) *Collector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Collector{
		enabled: true,
		inflightSteps: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flowgraph",
			Name:      "inflight_steps",
			Help:      "Number of workflow steps currently executing, by run_id.",
		}, []string{"run_id"}),
		queueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flowgraph",
			Name:      "ready_queue_depth",
			Help:      "Number of steps in-degree-zero and waiting for a worker slot, by run_id.",
		}, []string{"run_id"}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowgraph",
			Name:      "step_latency_ms",
			Help:      "Step execution duration in milliseconds, from dispatch to completion.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000},
		}, []string{"run_id", "step", "status"}),
		modelRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowgraph",
			Name:      "model_failover_attempts_total",
			Help:      "Model candidate attempts in a step's failover chain, labeled by outcome.",
		}, []string{"run_id", "step", "outcome"}),
		stepsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowgraph",
			Name:      "steps_skipped_total",
			Help:      "Steps skipped, labeled by reason (dependency failed, when condition false, unmet dependencies).",
		}, []string{"run_id", "reason"}),
	}
}

// Null returns a Collector that records nothing; every method is a
// no-op. Used as the executor's default when no registry is supplied.
func Null() *Collector { return &Collector{} }

func (c *Collector) RecordStepLatency(runID, step string, d time.Duration, status string) {
	if c == nil || !c.enabled {
		return
	}
	c.stepLatency.WithLabelValues(runID, step, status).Observe(float64(d.Milliseconds()))
}

func (c *Collector) SetInflightSteps(runID string, n int) {
	if c == nil || !c.enabled {
		return
	}
	c.inflightSteps.WithLabelValues(runID).Set(float64(n))
}

func (c *Collector) SetQueueDepth(runID string, n int) {
	if c == nil || !c.enabled {
		return
	}
	c.queueDepth.WithLabelValues(runID).Set(float64(n))
}

func (c *Collector) IncModelAttempt(runID, step, outcome string) {
	if c == nil || !c.enabled {
		return
	}
	c.modelRetries.WithLabelValues(runID, step, outcome).Inc()
}

func (c *Collector) IncStepSkipped(runID, reason string) {
	if c == nil || !c.enabled {
		return
	}
	c.stepsSkipped.WithLabelValues(runID, reason).Inc()
}
