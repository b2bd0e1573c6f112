package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kratos_api_requests_total",
			Help: "Total number of backend REST calls made by the client core.",
		},
		[]string{"route", "outcome"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kratos_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"side"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kratos_ws_events_total",
			Help: "Total number of websocket events by name and direction.",
		},
		[]string{"direction", "event"},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kratos_http_requests_total",
			Help: "Total number of HTTP requests handled by the dev stub.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kratos_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kratos_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		apiRequestsTotal,
		wsActiveConnections,
		wsEventsTotal,
		httpRequestsTotal,
		httpRequestDuration,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records request counts and latencies on the
// dev stub router.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncAPIRequest(route, outcome string) {
	apiRequestsTotal.WithLabelValues(route, outcome).Inc()
}

func IncWSActive(side string) {
	wsActiveConnections.WithLabelValues(side).Inc()
}

func DecWSActive(side string) {
	wsActiveConnections.WithLabelValues(side).Dec()
}

func IncWSEvent(direction, event string) {
	wsEventsTotal.WithLabelValues(direction, event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
