package orchestrator

import "github.com/prometheus/client_golang/prometheus"

var (
	executionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentrypay",
		Subsystem: "orchestrator",
		Name:      "executions_total",
		Help:      "Total plan executions by outcome.",
	}, []string{"outcome"}) // "executed", "failed", "decision_failed"

	actionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentrypay",
		Subsystem: "orchestrator",
		Name:      "actions_total",
		Help:      "Total plan actions by type and outcome.",
	}, []string{"type", "outcome"})

	executionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sentrypay",
		Subsystem: "orchestrator",
		Name:      "execution_duration_seconds",
		Help:      "Time to execute a full plan in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
	})

	decisionUpdateFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sentrypay",
		Subsystem: "orchestrator",
		Name:      "decision_update_failures_total",
		Help:      "Decision status updates that failed after execution.",
	})
)

func init() {
	prometheus.MustRegister(
		executionsTotal,
		actionsTotal,
		executionDuration,
		decisionUpdateFailures,
	)
}
