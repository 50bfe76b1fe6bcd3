package payments

import "github.com/prometheus/client_golang/prometheus"

var (
	paymentsScheduled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sentrypay",
		Subsystem: "payments",
		Name:      "scheduled_total",
		Help:      "Total scheduled payments created.",
	})

	paymentsCancelled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sentrypay",
		Subsystem: "payments",
		Name:      "cancelled_total",
		Help:      "Total scheduled payments cancelled before execution.",
	})
)

func init() {
	prometheus.MustRegister(
		paymentsScheduled,
		paymentsCancelled,
	)
}
