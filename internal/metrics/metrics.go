package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Webhooks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alertrelay_webhooks_total",
		Help: "Provider webhook calls, labelled by intake outcome.",
	}, []string{"outcome"})

	WebhookDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "alertrelay_webhook_duration_ms",
		Help:    "Webhook handling latency in milliseconds.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
	})

	AlertsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alertrelay_alerts_appended_total",
		Help: "Alerts inserted into the alert log.",
	})

	AlertLogSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "alertrelay_alert_log_size",
		Help: "Number of alerts currently held in memory.",
	})

	ViewersConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "alertrelay_viewers_connected",
		Help: "Connected viewer surfaces, labelled by transport.",
	}, []string{"transport"})

	ViewerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alertrelay_viewer_messages_total",
		Help: "Messages queued to viewers, labelled by message type.",
	}, []string{"type"})

	ViewersEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alertrelay_viewers_evicted_total",
		Help: "Viewers disconnected because their send queue was full.",
	})

	SinkPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alertrelay_sink_publish_total",
		Help: "Alert mirror publishes, labelled by sink and status.",
	}, []string{"sink", "status"})

	SinkDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alertrelay_sink_dropped_total",
		Help: "Alerts not mirrored because the forwarder queue was full.",
	})

	PaymentLinks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alertrelay_payment_links_total",
		Help: "Payment link creation attempts, labelled by status.",
	}, []string{"status"})
)
