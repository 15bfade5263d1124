// Package metrics provides Prometheus instrumentation for the triage
// service. It exposes counters for report intake and review outcomes, a
// gauge for the pending-case backlog, and a histogram for classifier
// latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReportsTotal counts reports written into the case store, labeled by
	// source: "user" or "auto".
	ReportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_reports_total",
		Help: "Total number of reports filed",
	}, []string{"source"})

	// PendingCases tracks the current number of cases awaiting review.
	PendingCases = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "triage_pending_cases",
		Help: "Current number of cases in the pending queue",
	})

	// ReviewsTotal counts finalized reviews, labeled by disposition:
	// "hate", "other", "none", or "further-review".
	ReviewsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_reviews_total",
		Help: "Total number of finalized case reviews",
	}, []string{"disposition"})

	// EscalationsTotal counts applied escalation actions, labeled by tier:
	// "warn", "temporary", or "permanent".
	EscalationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_escalations_total",
		Help: "Total number of escalation actions applied",
	}, []string{"tier"})

	// ScoringLatency records end-to-end classifier aggregation latency.
	ScoringLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "triage_scoring_latency_seconds",
		Help:    "Latency of score aggregation across classifiers",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
	})
)

func init() {
	prometheus.MustRegister(
		ReportsTotal,
		PendingCases,
		ReviewsTotal,
		EscalationsTotal,
		ScoringLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
