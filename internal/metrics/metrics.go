package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CheckoutsInitiated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ppv_checkouts_initiated_total",
			Help: "Number of checkout sessions created",
		},
	)

	PurchasesCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ppv_purchases_completed_total",
			Help: "Number of purchases transitioned to completed",
		},
	)

	WebhooksProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ppv_webhooks_processed_total",
			Help: "Number of processor notifications handled, by type",
		},
		[]string{"type"},
	)

	WebhooksRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ppv_webhooks_rejected_total",
			Help: "Number of processor notifications rejected for invalid signature",
		},
	)

	GrantFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ppv_grant_failures_total",
			Help: "Number of failed stream-provider grant calls",
		},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func Register() {
	prometheus.MustRegister(
		CheckoutsInitiated,
		PurchasesCompleted,
		WebhooksProcessed,
		WebhooksRejected,
		GrantFailures,
		HTTPRequestDuration,
	)
}
