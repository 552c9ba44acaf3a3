package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/samirrijal/molbubble/internal/core/domain"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "molbubble",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "molbubble",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Watch inbox/outbox
	InboxMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "molbubble",
		Subsystem: "inbox",
		Name:      "messages_total",
		Help:      "Inbound companion messages by dispatch kind",
	}, []string{"kind"})

	InboxDecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "molbubble",
		Subsystem: "inbox",
		Name:      "decode_errors_total",
		Help:      "Inbound messages that could not be decoded",
	})

	OutboxRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "molbubble",
		Subsystem: "outbox",
		Name:      "requests_total",
		Help:      "Refresh requests sent to the companion",
	}, []string{"result"})

	StationsTableSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "molbubble",
		Subsystem: "stations",
		Name:      "table_size",
		Help:      "Announced number of stations",
	})

	StationsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "molbubble",
		Subsystem: "stations",
		Name:      "pending",
		Help:      "Station records still expected",
	})

	DataPending = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "molbubble",
		Subsystem: "stations",
		Name:      "data_pending",
		Help:      "1 while a data category has not arrived yet",
	}, []string{"category"})

	// Companion
	CompanionSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "molbubble",
		Subsystem: "companion",
		Name:      "sends_total",
		Help:      "Companion message deliveries by result",
	}, []string{"result"})

	FeedPollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "molbubble",
		Subsystem: "companion",
		Name:      "feed_poll_duration_seconds",
		Help:      "Duration of bike feed polling",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	FeedPollErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "molbubble",
		Subsystem: "companion",
		Name:      "feed_poll_errors_total",
		Help:      "Total bike feed poll errors",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "molbubble",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	// Storage
	PersistOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "molbubble",
		Subsystem: "persist",
		Name:      "operations_total",
		Help:      "Persistent storage operations",
	}, []string{"driver", "op"})
)

// ObservePending publishes the station table readiness.
func ObservePending(size int, p domain.Pending) {
	StationsTableSize.Set(float64(size))
	StationsPending.Set(float64(max(p.Stations, 0)))
	DataPending.WithLabelValues("location").Set(boolGauge(p.Location))
	DataPending.WithLabelValues("bikes").Set(boolGauge(p.Bikes))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
