package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "courier_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "courier_ws_connections_active",
		Help: "Number of open websocket connections",
	})

	ConnectionsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_ws_connections_dropped_total",
		Help: "Connections closed by the server",
	}, []string{"reason"})

	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_messages_total",
		Help: "Messages processed by operation",
	}, []string{"operation"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_events_published_total",
		Help: "Realtime events published to the fabric",
	}, []string{"type"})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_events_dropped_total",
		Help: "Events dropped due to slow-client backpressure",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_cache_hits_total",
		Help: "Cache-aside hits and misses",
	}, []string{"result"})

	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_rate_limit_rejections_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"class"})

	PresenceSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_presence_sweeps_total",
		Help: "Stale presence entries cleaned by the sweeper",
	})
)
