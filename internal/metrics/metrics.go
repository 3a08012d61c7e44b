package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestLatency   *prometheus.HistogramVec
	RateLimitedTotal prometheus.Counter

	// Live fan-out.
	WebsocketConnections prometheus.Gauge
	BroadcastQueueDepth  prometheus.Gauge

	// Tunnel mux.
	TunnelDevices        prometheus.Gauge
	TunnelSessionsTotal  *prometheus.CounterVec
	TunnelDeviceHealth   *prometheus.GaugeVec // 0=down, 1=degraded, 2=healthy
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slepau_requests_total",
			Help: "Total HTTP requests served",
		}, []string{"route", "method", "status"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "slepau_request_latency_ms",
			Help:    "Request latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"route", "method"}),
		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slepau_rate_limited_total",
			Help: "Total requests rejected by the rate limiter",
		}),
		WebsocketConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slepau_websocket_connections",
			Help: "Current number of open live fan-out WebSocket connections",
		}),
		BroadcastQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slepau_broadcast_queue_depth",
			Help: "Sum of queued-but-undelivered messages across all fan-out subscribers",
		}),
		TunnelDevices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slepau_tunnel_devices",
			Help: "Current number of devices registered on the tunnel control channel",
		}),
		TunnelSessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slepau_tunnel_sessions_total",
			Help: "Total tunnel data-plane sessions, by outcome",
		}, []string{"outcome"}),
		TunnelDeviceHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "slepau_tunnel_device_health",
			Help: "Per-device connection health (0=down, 1=degraded, 2=healthy)",
		}, []string{"device_id"}),
	}
	reg.MustRegister(
		m.RequestsTotal, m.RequestLatency, m.RateLimitedTotal,
		m.WebsocketConnections, m.BroadcastQueueDepth,
		m.TunnelDevices, m.TunnelSessionsTotal, m.TunnelDeviceHealth,
	)
	return m
}

func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
