package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FollowUpsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "followups_completed_total",
			Help: "Total number of follow-ups completed by the send pipeline",
		},
	)

	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total number of emails accepted by the transport",
		},
	)

	EmailsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_failed_total",
			Help: "Total number of dispatch attempts rejected by the transport",
		},
	)

	WebhookEventsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_processed_total",
			Help: "Provider callback events applied to a message, by event type",
		},
		[]string{"event_type"},
	)

	WebhookEventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_events_dropped_total",
			Help: "Provider callback events that matched no message or failed to apply",
		},
	)
)

// Init registers metrics with Prometheus
func Init() {
	prometheus.MustRegister(FollowUpsCompleted)
	prometheus.MustRegister(EmailsSent)
	prometheus.MustRegister(EmailsFailed)
	prometheus.MustRegister(WebhookEventsProcessed)
	prometheus.MustRegister(WebhookEventsDropped)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
