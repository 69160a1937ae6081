/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsLabelOutcome = "outcome"

// Task outcomes used as label values.
const (
	TaskOutcomeCompleted = "completed"
	TaskOutcomePanicked  = "panicked"
)

// DefaultWaitBuckets is default buckets into which observations of time spent by tasks in the queue are counted.
var DefaultWaitBuckets = []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// MetricsCollector collects statistics about the dispatcher.
type MetricsCollector interface {
	SetQueueLength(int)
	ObserveWait(time.Duration)
	IncTasks(panicked bool)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	Namespace   string
	WaitBuckets []float64
}

// PrometheusMetrics represents Prometheus metrics for the dispatcher.
type PrometheusMetrics struct {
	QueueLength  prometheus.Gauge
	WaitDuration prometheus.Histogram
	TasksTotal   *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	waitBuckets := opts.WaitBuckets
	if waitBuckets == nil {
		waitBuckets = DefaultWaitBuckets
	}
	return &PrometheusMetrics{
		QueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: opts.Namespace,
			Name:      "dispatch_queue_length",
			Help:      "Number of tasks waiting in the dispatcher queue.",
		}),
		WaitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "dispatch_wait_seconds",
			Help:      "Time between task submission and the start of its execution.",
			Buckets:   waitBuckets,
		}),
		TasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "dispatch_tasks_total",
			Help:      "Number of executed dispatcher tasks.",
		}, []string{metricsLabelOutcome}),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.QueueLength, pm.WaitDuration, pm.TasksTotal)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.QueueLength)
	prometheus.Unregister(pm.WaitDuration)
	prometheus.Unregister(pm.TasksTotal)
}

// SetQueueLength sets the number of queued tasks.
func (pm *PrometheusMetrics) SetQueueLength(n int) {
	pm.QueueLength.Set(float64(n))
}

// ObserveWait observes time spent by a task in the queue.
func (pm *PrometheusMetrics) ObserveWait(d time.Duration) {
	pm.WaitDuration.Observe(d.Seconds())
}

// IncTasks increments the number of executed tasks.
func (pm *PrometheusMetrics) IncTasks(panicked bool) {
	outcome := TaskOutcomeCompleted
	if panicked {
		outcome = TaskOutcomePanicked
	}
	pm.TasksTotal.WithLabelValues(outcome).Inc()
}

type disabledMetrics struct{}

func (disabledMetrics) SetQueueLength(int)        {}
func (disabledMetrics) ObserveWait(time.Duration) {}
func (disabledMetrics) IncTasks(bool)             {}
