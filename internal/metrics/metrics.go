// Package metrics exposes Prometheus instrumentation for the hub.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Feed status gauge values.
const (
	FeedDisconnected = 0
	FeedConnecting   = 1
	FeedConnected    = 2
)

// Metrics holds all collectors registered by the hub.
type Metrics struct {
	registry *prometheus.Registry

	MessagesIngested *prometheus.CounterVec
	Notifications    prometheus.Counter
	WebhookFailures  *prometheus.CounterVec
	SendsTotal       prometheus.Counter
	FeedStatus       prometheus.Gauge
	Reconstructions  prometheus.Counter
}

// New builds a Metrics set on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		MessagesIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "whatshub_messages_ingested_total",
			Help: "Messages applied to the live log, by source.",
		}, []string{"source"}),
		Notifications: factory.NewCounter(prometheus.CounterOpts{
			Name: "whatshub_notifications_total",
			Help: "User-facing notifications raised for inbound messages.",
		}),
		WebhookFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "whatshub_webhook_delivery_failures_total",
			Help: "Outbound webhook delivery failures, by endpoint.",
		}, []string{"endpoint"}),
		SendsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "whatshub_sends_total",
			Help: "Accepted outbound send requests.",
		}),
		FeedStatus: factory.NewGauge(prometheus.GaugeOpts{
			Name: "whatshub_feed_status",
			Help: "Change-feed state: 0 disconnected, 1 connecting, 2 connected.",
		}),
		Reconstructions: factory.NewCounter(prometheus.CounterOpts{
			Name: "whatshub_reconstructions_total",
			Help: "Conversation reconstruction passes executed.",
		}),
	}
}

// Registry returns the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
