package task

import "github.com/prometheus/client_golang/prometheus"

var (
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskrelay_task_submissions_total",
			Help: "Total number of task submissions, by backend kind, region, and outcome.",
		},
		[]string{"backend", "region", "outcome"},
	)

	backendFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskrelay_backend_fallbacks_total",
			Help: "Total number of lookups retried on the alternate backend kind.",
		},
		[]string{"op"},
	)

	pollTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskrelay_poll_timeouts_total",
			Help: "Total number of wait-for-completion calls that exhausted their attempt budget.",
		},
	)
)

func init() {
	prometheus.MustRegister(submissionsTotal)
	prometheus.MustRegister(backendFallbacksTotal)
	prometheus.MustRegister(pollTimeoutsTotal)
}
