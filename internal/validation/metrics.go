package validation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JaimeStill/clearance/internal/decision"
)

// Metrics records validation run outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	RunLatency prometheus.Histogram

	// Decisions by outcome: approve, hold, reject
	Decisions *prometheus.CounterVec

	// Rule results by severity and outcome: passed, failed, overridden
	Results *prometheus.CounterVec

	Superseded prometheus.Counter
}

// NewMetrics creates the validation metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "clearance_validation_run_duration_seconds",
			Help:    "Duration of a shipment validation run",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clearance_validation_decisions_total",
			Help: "Total compliance decisions by outcome",
		}, []string{"decision"}),

		Results: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clearance_validation_rule_results_total",
			Help: "Total rule results by severity and outcome",
		}, []string{"severity", "outcome"}),

		Superseded: factory.NewCounter(prometheus.CounterOpts{
			Name: "clearance_validation_reports_superseded_total",
			Help: "Reports discarded because a newer run was already stored",
		}),
	}
}

// ObserveRun records a completed run.
func (m *Metrics) ObserveRun(report decision.Report, d time.Duration) {
	if m == nil {
		return
	}
	m.RunLatency.Observe(d.Seconds())
	m.Decisions.WithLabelValues(string(report.Decision)).Inc()
	for _, res := range report.Results {
		outcome := "failed"
		switch {
		case res.Passed:
			outcome = "passed"
		case res.IsOverridden:
			outcome = "overridden"
		}
		m.Results.WithLabelValues(string(res.Severity), outcome).Inc()
	}
}

// IncrementSuperseded records a discarded report.
func (m *Metrics) IncrementSuperseded() {
	if m != nil {
		m.Superseded.Inc()
	}
}
