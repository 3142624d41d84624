// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector the streaming server maintains.
type Metrics struct {
	registry *prometheus.Registry

	// ConnectedClients counts open transports by type
	// (websocket | eventsource).
	ConnectedClients *prometheus.GaugeVec

	// ConnectedChannels counts active logical stream subscriptions by
	// transport type and stream name.
	ConnectedChannels *prometheus.GaugeVec

	// UpstreamSubscriptions tracks distinct upstream channels this worker
	// is subscribed to.
	UpstreamSubscriptions prometheus.Gauge

	// UpstreamMessagesReceived counts raw messages off the upstream link.
	UpstreamMessagesReceived prometheus.Counter

	// MessagesSent counts events written to client transports by type.
	MessagesSent *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ConnectedClients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streaming_connected_clients",
			Help: "Number of connected clients.",
		}, []string{"type"}),
		ConnectedChannels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streaming_connected_channels",
			Help: "Number of active stream subscriptions.",
		}, []string{"type", "channel"}),
		UpstreamSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streaming_upstream_subscriptions",
			Help: "Number of distinct upstream pub/sub channel subscriptions.",
		}),
		UpstreamMessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streaming_upstream_messages_received_total",
			Help: "Messages received from the upstream pub/sub link.",
		}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streaming_messages_sent_total",
			Help: "Events written to client transports.",
		}, []string{"type"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ConnectedClients,
		m.ConnectedChannels,
		m.UpstreamSubscriptions,
		m.UpstreamMessagesReceived,
		m.MessagesSent,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
