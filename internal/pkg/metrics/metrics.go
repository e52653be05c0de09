package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fuelroute",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fuelroute",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fuelroute",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Optimizer metrics
	PlansComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fuelroute",
		Subsystem: "optimizer",
		Name:      "plans_total",
		Help:      "Total plan computations by outcome",
	}, []string{"outcome"})

	StopsPerPlan = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fuelroute",
		Subsystem: "optimizer",
		Name:      "stops_per_plan",
		Help:      "Number of fuel stops selected per plan",
		Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 8, 10, 15},
	})

	RangeExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fuelroute",
		Subsystem: "optimizer",
		Name:      "range_exceeded_total",
		Help:      "Plans with a leg longer than the vehicle range",
	})

	CatalogueQueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fuelroute",
		Subsystem: "catalogue",
		Name:      "query_duration_seconds",
		Help:      "Duration of candidate station queries",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	CatalogueRowsImported = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fuelroute",
		Subsystem: "catalogue",
		Name:      "rows_imported_total",
		Help:      "Catalogue rows handled by an import, by kind (station, price, skipped)",
	}, []string{"kind"})

	RouteProviderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fuelroute",
		Subsystem: "routing",
		Name:      "request_duration_seconds",
		Help:      "Duration of route provider requests",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"status"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fuelroute",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fuelroute",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fuelroute",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fuelroute",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fuelroute",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fuelroute",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		// Route pattern, not the raw path, to keep label cardinality bounded.
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

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

// UpdateDBPoolMetrics updates database pool gauges from a pgxpool.Stat.
func UpdateDBPoolMetrics(stat interface{}) {
	// Kept structural so this package does not import pgxpool.
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
