package remote

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for outbound call outcomes.
const (
	outcomeOK        = "ok"
	outcomeRejected  = "rejected"
	outcomeTransport = "transport_error"
)

var (
	providerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskrelay_provider_requests_total",
			Help: "Total number of outbound provider API calls.",
		},
		[]string{"path", "outcome"},
	)

	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskrelay_uploads_total",
			Help: "Total number of asset uploads, by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(providerRequestsTotal)
	prometheus.MustRegister(uploadsTotal)
}

func recordRequest(path, outcome string) {
	providerRequestsTotal.WithLabelValues(path, outcome).Inc()
}
