// Package metrics exposes Prometheus instrumentation for the workflow
// engine, wired the way the example observability setups in the retrieval
// pack expose a /metrics endpoint via promhttp (no tracing/OTel here —
// out of this engine's scope).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WorkflowsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bte_workflows_started_total",
		Help: "Total workflow instances started.",
	})

	ActionsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bte_actions_processed_total",
		Help: "Total actions processed, by action type and outcome.",
	}, []string{"action", "outcome"})

	WorkflowsTerminal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bte_workflows_terminal_total",
		Help: "Total workflow instances reaching a terminal status, by status.",
	}, []string{"status"})

	StageActivationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bte_stage_activation_seconds",
		Help:    "Time spent materializing a stage-group activation.",
		Buckets: prometheus.DefBuckets,
	})

	SLABreaches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bte_sla_breaches_total",
		Help: "Total SLA breach hooks fired by the scheduler.",
	})

	OutboxBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bte_outbox_backlog",
		Help: "Undelivered outbox event rows at last drain.",
	})
)

// Handler returns the promhttp handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
