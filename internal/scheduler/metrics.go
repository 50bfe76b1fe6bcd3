package scheduler

import "github.com/prometheus/client_golang/prometheus"

var (
	ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sentrypay",
		Subsystem: "scheduler",
		Name:      "ticks_total",
		Help:      "Total due-payment sweeps.",
	})

	claimsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentrypay",
		Subsystem: "scheduler",
		Name:      "claims_total",
		Help:      "Claim attempts by result.",
	}, []string{"result"}) // "claimed", "conflict"

	executionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentrypay",
		Subsystem: "scheduler",
		Name:      "executions_total",
		Help:      "Executed due payments by outcome.",
	}, []string{"outcome"}) // "completed", "failed"

	successorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sentrypay",
		Subsystem: "scheduler",
		Name:      "successors_total",
		Help:      "Recurring successor payments created.",
	})

	remindersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sentrypay",
		Subsystem: "scheduler",
		Name:      "reminders_total",
		Help:      "Upcoming-payment reminders sent.",
	})
)

func init() {
	prometheus.MustRegister(
		ticksTotal,
		claimsTotal,
		executionsTotal,
		successorsTotal,
		remindersTotal,
	)
}
