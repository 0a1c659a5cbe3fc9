package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/edvin/bookwell/internal/model"
)

var (
	billingRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "billing_runs_total",
		Help: "Number of daily billing runs executed",
	})
	billingRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "billing_run_duration_seconds",
		Help:    "Wall-clock duration of daily billing runs",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
	billingChargesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_charges_total",
		Help: "Charge outcomes per billing pass",
	}, []string{"pass", "outcome"})
	billingAlertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_alerts_total",
		Help: "Alerts raised by the billing analyzer",
	}, []string{"type", "severity"})
	billingRunErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "billing_run_errors_total",
		Help: "Aborted passes and per-subscription errors across billing runs",
	})
)

// RegisterBillingMetrics registers the billing collectors.
func RegisterBillingMetrics() {
	prometheus.MustRegister(
		billingRunsTotal,
		billingRunDuration,
		billingChargesTotal,
		billingAlertsTotal,
		billingRunErrorsTotal,
	)
}

// ObserveBillingRun records the aggregates of one completed billing run.
func ObserveBillingRun(report *model.BillingReport) {
	billingRunsTotal.Inc()
	billingRunDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())

	observePass := func(name string, p model.PassResult) {
		billingChargesTotal.WithLabelValues(name, "success").Add(float64(p.Successful))
		billingChargesTotal.WithLabelValues(name, "failure").Add(float64(p.Failed))
	}
	observePass("trial_charges", report.TrialCharges)
	observePass("retry_sweep", report.RetrySweep)

	for _, a := range report.Alerts {
		billingAlertsTotal.WithLabelValues(a.Type, a.Severity).Inc()
	}
	billingRunErrorsTotal.Add(float64(len(report.AllErrors())))
}
