package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/silo"
	"github.com/hupe1980/silo/apierr"
)

const namespace = "silo"

// PrometheusCollector records database and HTTP metrics with the
// Prometheus client. It implements silo.MetricsCollector.
type PrometheusCollector struct {
	queries         *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
	rows            *prometheus.CounterVec
	rejected        prometheus.Counter
	swaps           prometheus.Counter
	partitions      prometheus.Gauge
	dataVersion     prometheus.Gauge
	requestDuration *prometheus.HistogramVec
}

var _ silo.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates the collector and registers its metrics
// on reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	pc := &PrometheusCollector{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Number of queries by action and outcome.",
		}, []string{"action", "outcome"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Query latencies in seconds.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		}, []string{"action"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_rows_total",
			Help:      "Number of result rows returned by action.",
		}, []string{"action"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_rejected_total",
			Help:      "Number of queries turned away by admission control.",
		}),
		swaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_swaps_total",
			Help:      "Number of snapshots made active.",
		}),
		partitions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_partitions",
			Help:      "Number of partitions of the active snapshot.",
		}),
		dataVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_data_version",
			Help:      "Data version of the active snapshot, if numeric.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   []float64{.01, .1, 1, 10},
		}, []string{"code", "path", "method"}),
	}
	reg.MustRegister(
		pc.queries,
		pc.queryDuration,
		pc.rows,
		pc.rejected,
		pc.swaps,
		pc.partitions,
		pc.dataVersion,
		pc.requestDuration,
	)
	return pc
}

// RecordQuery implements silo.MetricsCollector.
func (pc *PrometheusCollector) RecordQuery(action string, duration time.Duration, rows int, err error) {
	if action == "" {
		action = "unknown"
	}
	outcome := "ok"
	if err != nil {
		kind, _ := apierr.Classify(err)
		outcome = strconv.Itoa(kind.Status())
	}
	pc.queries.WithLabelValues(action, outcome).Inc()
	pc.queryDuration.WithLabelValues(action).Observe(duration.Seconds())
	pc.rows.WithLabelValues(action).Add(float64(rows))
}

// RecordSnapshotSwap implements silo.MetricsCollector.
func (pc *PrometheusCollector) RecordSnapshotSwap(dataVersion string, partitions int) {
	pc.swaps.Inc()
	pc.partitions.Set(float64(partitions))
	if v, err := strconv.ParseFloat(dataVersion, 64); err == nil {
		pc.dataVersion.Set(v)
	}
}

// RecordRejected implements silo.MetricsCollector.
func (pc *PrometheusCollector) RecordRejected() {
	pc.rejected.Inc()
}

// Middleware observes the latency of every request, labelled with the
// route template.
func (pc *PrometheusCollector) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		pc.requestDuration.
			WithLabelValues(strconv.Itoa(c.Writer.Status()), path, c.Request.Method).
			Observe(time.Since(start).Seconds())
	}
}
