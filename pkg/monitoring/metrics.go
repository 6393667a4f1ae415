package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// ServiceName is the service name used in metrics
	ServiceName = "gpx2energy"
)

var (
	// Derivation metrics
	TracksAnalyzed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpx2energy_tracks_analyzed_total",
			Help: "Total number of tracks derived, by outcome",
		},
		[]string{"status"},
	)

	PointsDerived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gpx2energy_points_derived_total",
			Help: "Total number of track points derived",
		},
	)

	DerivationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gpx2energy_track_derivation_duration_seconds",
			Help:    "Per-track derivation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		},
	)

	SanityCheckFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gpx2energy_sanity_check_failures_total",
			Help: "Total number of tracks rejected by the power plausibility check",
		},
	)

	// Tool request metrics
	ToolRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpx2energy_tool_requests_total",
			Help: "Total number of tool requests processed",
		},
		[]string{"tool", "status"},
	)

	ToolRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gpx2energy_tool_request_duration_seconds",
			Help:    "Tool request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"tool"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpx2energy_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpx2energy_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gpx2energy_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "build_commit", "build_date"},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gpx2energy_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gpx2energy_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)
)

// RecordToolRequest updates the tool request counters and duration histogram.
func RecordToolRequest(tool string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	ToolRequestsTotal.WithLabelValues(tool, status).Inc()
	ToolRequestDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordCacheHit records a cache hit for the given cache type.
func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss for the given cache type.
func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}
