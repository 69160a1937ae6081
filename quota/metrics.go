/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import "github.com/prometheus/client_golang/prometheus"

const (
	metricsLabelAction   = "action"
	metricsLabelDecision = "decision"
)

// Decision label values.
const (
	DecisionAllowed  = "allowed"
	DecisionDenied   = "denied"
	DecisionFailOpen = "fail_open"
)

// MetricsCollector collects statistics about admission decisions.
type MetricsCollector interface {
	IncDecisions(action, decision string)
}

// PrometheusMetrics represents Prometheus metrics for the admission controller.
type PrometheusMetrics struct {
	DecisionsTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	return &PrometheusMetrics{
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_decisions_total",
			Help:      "Number of admission decisions.",
		}, []string{metricsLabelAction, metricsLabelDecision}),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.DecisionsTotal)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.DecisionsTotal)
}

// IncDecisions increments the number of decisions.
func (pm *PrometheusMetrics) IncDecisions(action, decision string) {
	pm.DecisionsTotal.WithLabelValues(action, decision).Inc()
}

type disabledMetrics struct{}

func (disabledMetrics) IncDecisions(string, string) {}
