package risk

import "github.com/prometheus/client_golang/prometheus"

var (
	checksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentrypay",
		Subsystem: "risk",
		Name:      "checks_total",
		Help:      "Total risk checks by recommendation.",
	}, []string{"recommendation"})

	riskScoreHist = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sentrypay",
		Subsystem: "risk",
		Name:      "score",
		Help:      "Distribution of risk scores.",
		Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	alertsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sentrypay",
		Subsystem: "risk",
		Name:      "alerts_total",
		Help:      "Total security alerts raised.",
	})
)

func init() {
	prometheus.MustRegister(checksTotal, riskScoreHist, alertsTotal)
}
